package service

import (
	"sync"

	"consultation-queue-backend/internal/domain"
)

// queueLocks serializes position computation per queue type.
type queueLocks struct {
	mu    sync.Mutex
	locks map[domain.QueueType]*sync.Mutex
}

func newQueueLocks() *queueLocks {
	return &queueLocks{locks: make(map[domain.QueueType]*sync.Mutex)}
}

func (l *queueLocks) lock(queueType domain.QueueType) func() {
	l.mu.Lock()
	m, ok := l.locks[queueType]
	if !ok {
		m = &sync.Mutex{}
		l.locks[queueType] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
