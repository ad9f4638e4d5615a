package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
)

// ChangeChannel is the NOTIFY channel written by the queue_entries trigger.
const ChangeChannel = "queue_entries_changes"

// ChangeListener fans queue_entries notifications out to per-queue-type handlers.
// Handlers run on the listener goroutine, one event at a time.
type ChangeListener struct {
	notify <-chan *pq.Notification
	ping   func() error
	close  func() error

	mu       sync.RWMutex
	handlers map[domain.QueueType]map[int]repository.ChangeHandler
	nextID   int
}

// NewChangeListener opens a dedicated LISTEN connection.
func NewChangeListener(connString string) (*ChangeListener, error) {
	l := pq.NewListener(connString, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error("Change listener connection event", "event", ev, "error", err)
		}
	})
	if err := l.Listen(ChangeChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen on %s: %w", ChangeChannel, err)
	}
	return newChangeListener(l.Notify, l.Ping, l.Close), nil
}

func newChangeListener(notify <-chan *pq.Notification, ping, closeFn func() error) *ChangeListener {
	return &ChangeListener{
		notify:   notify,
		ping:     ping,
		close:    closeFn,
		handlers: make(map[domain.QueueType]map[int]repository.ChangeHandler),
	}
}

func (l *ChangeListener) Subscribe(queueType domain.QueueType, handler repository.ChangeHandler) (repository.Subscription, error) {
	if !queueType.Valid() {
		return nil, &domain.ValidationError{Field: "queueType", Message: "unknown queue type"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handlers[queueType] == nil {
		l.handlers[queueType] = make(map[int]repository.ChangeHandler)
	}
	l.nextID++
	id := l.nextID
	l.handlers[queueType][id] = handler
	return &subscription{listener: l, queueType: queueType, id: id}, nil
}

// Run dispatches notifications until ctx is cancelled.
func (l *ChangeListener) Run(ctx context.Context) {
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-l.notify:
			if !ok {
				return
			}
			if n == nil {
				// Connection was re-established; changes may have been missed.
				l.resync(ctx)
				continue
			}
			l.dispatch(ctx, n.Extra)
		case <-ticker.C:
			if l.ping != nil {
				if err := l.ping(); err != nil {
					logger.Warn("Change listener ping failed", "error", err)
				}
			}
		}
	}
}

func (l *ChangeListener) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

func (l *ChangeListener) dispatch(ctx context.Context, payload string) {
	var event repository.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn("Discarding malformed change notification", "payload", payload, "error", err)
		return
	}
	for _, h := range l.handlersFor(event.QueueType) {
		h(ctx, event)
	}
}

func (l *ChangeListener) resync(ctx context.Context) {
	for _, qt := range domain.QueueTypes {
		for _, h := range l.handlersFor(qt) {
			h(ctx, repository.ChangeEvent{Op: repository.ChangeUpdate, QueueType: qt})
		}
	}
}

func (l *ChangeListener) handlersFor(queueType domain.QueueType) []repository.ChangeHandler {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hs := make([]repository.ChangeHandler, 0, len(l.handlers[queueType]))
	for _, h := range l.handlers[queueType] {
		hs = append(hs, h)
	}
	return hs
}

type subscription struct {
	listener  *ChangeListener
	queueType domain.QueueType
	id        int
	once      sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.listener.mu.Lock()
		defer s.listener.mu.Unlock()
		delete(s.listener.handlers[s.queueType], s.id)
	})
}
