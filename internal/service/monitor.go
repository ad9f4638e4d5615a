package service

import (
	"context"
	"errors"
	"sync"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/metrics"
	"consultation-queue-backend/internal/repository"
)

const defaultTopNotifyThreshold = 3

type positionMonitor struct {
	queue        QueueService
	feed         repository.ChangeFeed
	dispatcher   NotificationDispatcher
	topThreshold int

	mu            sync.RWMutex
	monitoring    bool
	subscriptions map[domain.QueueType]repository.Subscription
	observers     []SnapshotFunc

	// previous holds the last observed position per entry id, per queue type.
	// Each inner map is guarded by the matching lock in typeLocks.
	typeLocks *queueLocks
	previous  map[domain.QueueType]map[string]int

	pending sync.WaitGroup
}

func NewPositionMonitor(queue QueueService, feed repository.ChangeFeed, dispatcher NotificationDispatcher, topThreshold int) PositionMonitor {
	if topThreshold <= 0 {
		topThreshold = defaultTopNotifyThreshold
	}
	previous := make(map[domain.QueueType]map[string]int, len(domain.QueueTypes))
	for _, qt := range domain.QueueTypes {
		previous[qt] = make(map[string]int)
	}
	return &positionMonitor{
		queue:         queue,
		feed:          feed,
		dispatcher:    dispatcher,
		topThreshold:  topThreshold,
		subscriptions: make(map[domain.QueueType]repository.Subscription),
		typeLocks:     newQueueLocks(),
		previous:      previous,
	}
}

func (m *positionMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitoring {
		return nil
	}
	if m.feed == nil {
		return errors.New("position monitor has no change feed")
	}
	for _, qt := range domain.QueueTypes {
		sub, err := m.feed.Subscribe(qt, m.handleChange)
		if err != nil {
			for _, s := range m.subscriptions {
				s.Unsubscribe()
			}
			m.subscriptions = make(map[domain.QueueType]repository.Subscription)
			return err
		}
		m.subscriptions[qt] = sub
	}
	m.monitoring = true
	logger.InfoContext(ctx, "Position monitor started", "queues", len(m.subscriptions))
	return nil
}

// Stop unsubscribes from the change feed and waits for notifications already in flight.
func (m *positionMonitor) Stop() {
	m.mu.Lock()
	for qt, s := range m.subscriptions {
		s.Unsubscribe()
		delete(m.subscriptions, qt)
	}
	wasRunning := m.monitoring
	m.monitoring = false
	m.mu.Unlock()

	m.pending.Wait()
	if wasRunning {
		logger.Info("Position monitor stopped")
	}
}

func (m *positionMonitor) IsMonitoring() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitoring
}

func (m *positionMonitor) ActiveSubscriptions() []domain.QueueType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.QueueType, 0, len(m.subscriptions))
	for _, qt := range domain.QueueTypes {
		if _, ok := m.subscriptions[qt]; ok {
			out = append(out, qt)
		}
	}
	return out
}

func (m *positionMonitor) Observe(fn SnapshotFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *positionMonitor) handleChange(ctx context.Context, event repository.ChangeEvent) {
	log := logger.WithQueue("PositionMonitor", event.QueueType)
	log.Debug("Change event", "op", event.Op, "id", event.ID)

	if err := m.refresh(ctx, event.QueueType); err != nil {
		log.Error("Failed to refresh queue after change", "error", err)
	}
}

// refresh compares the current working set against the last observed positions and
// emails approved entries whose position moved.
func (m *positionMonitor) refresh(ctx context.Context, queueType domain.QueueType) error {
	unlock := m.typeLocks.lock(queueType)

	waiting, err := m.queue.GetQueueEntries(ctx, queueType)
	if err != nil {
		unlock()
		return err
	}
	approved, err := m.queue.GetApprovedQueueEntries(ctx, queueType)
	if err != nil {
		unlock()
		return err
	}

	prev := m.previous[queueType]
	next := make(map[string]int, len(waiting)+len(approved))
	var moved []domain.QueueEntry
	for _, set := range [][]domain.QueueEntry{waiting, approved} {
		for _, e := range set {
			old, seen := prev[e.ID]
			if seen && old != e.Position && e.Status == domain.QueueStatusApproved && e.Email != "" {
				moved = append(moved, e)
			}
			next[e.ID] = e.Position
		}
	}
	m.previous[queueType] = next
	unlock()

	metrics.SetQueueDepth(string(queueType), string(domain.QueueStatusWaiting), len(waiting))
	metrics.SetQueueDepth(string(queueType), string(domain.QueueStatusApproved), len(approved))

	for i := range moved {
		metrics.RecordPositionChange(string(queueType))
		m.notifyPosition(ctx, &moved[i])
	}
	m.publish(queueType, waiting, approved)
	return nil
}

// TriggerPositionUpdate renumbers the approved set and emails every entry now at the top of the queue.
func (m *positionMonitor) TriggerPositionUpdate(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	log := logger.WithQueue("PositionMonitor", queueType)

	approved, err := m.queue.RecalculateQueuePositions(ctx, queueType)
	if err != nil {
		log.Error("Position update failed", "error", err)
		return nil, err
	}

	unlock := m.typeLocks.lock(queueType)
	for _, e := range approved {
		m.previous[queueType][e.ID] = e.Position
	}
	unlock()

	notified := 0
	for i := range approved {
		if approved[i].Position <= m.topThreshold {
			m.notifyPosition(ctx, &approved[i])
			notified++
		}
	}
	log.Info("Position update triggered", "approved", len(approved), "notified", notified)
	return approved, nil
}

func (m *positionMonitor) notifyPosition(ctx context.Context, e *domain.QueueEntry) {
	notice, err := domain.NewPositionUpdateNotice(domain.RecipientOf(e), e.Position)
	if err != nil {
		logger.Warn("Position update not sent", "id", e.ID, "error", err)
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.pending.Add(1)
	go func(id string) {
		defer m.pending.Done()
		res := m.dispatcher.Send(ctx, notice)
		if !res.Delivered() {
			logger.Warn("Position update deferred", "id", id, "reason", res.Reason)
		}
	}(e.ID)
}

func (m *positionMonitor) publish(queueType domain.QueueType, waiting, approved []domain.QueueEntry) {
	m.mu.RLock()
	observers := append([]SnapshotFunc(nil), m.observers...)
	m.mu.RUnlock()

	for _, fn := range observers {
		fn(queueType, waiting, approved)
	}
}
