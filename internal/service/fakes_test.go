package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/repository"
)

// memQueueRepo is an in-memory QueueRepository keeping rows in insertion order.
type memQueueRepo struct {
	mu      sync.Mutex
	rows    map[string]*domain.QueueEntry
	seq     map[string]int
	nextSeq int

	failWith error
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{rows: make(map[string]*domain.QueueEntry), seq: make(map[string]int)}
}

func (r *memQueueRepo) fail() error {
	if r.failWith != nil {
		return domain.NewStoreError("fake", r.failWith)
	}
	return nil
}

func (r *memQueueRepo) Create(ctx context.Context, e *domain.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	e.ID = uuid.NewString()
	cp := *e
	r.rows[e.ID] = &cp
	r.nextSeq++
	r.seq[e.ID] = r.nextSeq
	return nil
}

func (r *memQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	e, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memQueueRepo) Update(ctx context.Context, e *domain.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	if _, ok := r.rows[e.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *memQueueRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	if _, ok := r.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memQueueRepo) MaxPosition(ctx context.Context, qt domain.QueueType, status domain.QueueStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return 0, err
	}
	highest := 0
	for _, e := range r.rows {
		if e.QueueType == qt && e.Status == status && e.Position > highest {
			highest = e.Position
		}
	}
	return highest, nil
}

func (r *memQueueRepo) CountByStatus(ctx context.Context, qt domain.QueueType, status domain.QueueStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range r.rows {
		if e.QueueType == qt && e.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *memQueueRepo) ListByStatus(ctx context.Context, qt domain.QueueType, status domain.QueueStatus, order repository.ListOrder) ([]domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	out := []domain.QueueEntry{}
	for _, e := range r.rows {
		if (qt == "" || e.QueueType == qt) && e.Status == status {
			out = append(out, *e)
		}
	}
	r.sortLocked(out, order)
	return out, nil
}

func (r *memQueueRepo) ListAll(ctx context.Context) ([]domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	out := []domain.QueueEntry{}
	for _, e := range r.rows {
		out = append(out, *e)
	}
	r.sortLocked(out, repository.OrderByCreatedDesc)
	return out, nil
}

func (r *memQueueRepo) UpdatePositions(ctx context.Context, positions map[string]int, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	for id := range positions {
		if _, ok := r.rows[id]; !ok {
			return domain.ErrNotFound
		}
	}
	for id, pos := range positions {
		r.rows[id].Position = pos
		r.rows[id].UpdatedAt = updatedAt
	}
	return nil
}

func (r *memQueueRepo) sortLocked(out []domain.QueueEntry, order repository.ListOrder) {
	created := func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	}
	switch order {
	case repository.OrderByCreatedAsc:
		sort.SliceStable(out, created)
	case repository.OrderByCreatedDesc:
		sort.SliceStable(out, func(i, j int) bool { return created(j, i) })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Position != out[j].Position {
				return out[i].Position < out[j].Position
			}
			return created(i, j)
		})
	}
}

// setPosition rewrites a row directly, bypassing the service.
func (r *memQueueRepo) setPosition(id string, pos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].Position = pos
}

func (r *memQueueRepo) get(id string) domain.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

// recordingDispatcher captures every notification and answers with a fixed result.
type recordingDispatcher struct {
	mu     sync.Mutex
	sent   []domain.Notification
	result domain.DispatchResult
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{result: domain.DispatchResult{Status: domain.DeliverySent, EmailID: "email-1"}}
}

func (d *recordingDispatcher) Send(ctx context.Context, n domain.Notification) domain.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.result
}

func (d *recordingDispatcher) SendEmail(ctx context.Context, to, name, surname string, kind domain.NotificationType, queuePosition int, reason string) domain.DispatchResult {
	return d.result
}

func (d *recordingDispatcher) notifications() []domain.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Notification(nil), d.sent...)
}

func (d *recordingDispatcher) ofType(kind domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range d.notifications() {
		if n.Type() == kind {
			out = append(out, n)
		}
	}
	return out
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Name() string { return "mock" }

func (m *MockEmailSender) Send(ctx context.Context, payload domain.EmailPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

// fakeFeed records subscriptions so tests can fire change events by hand.
type fakeFeed struct {
	mu       sync.Mutex
	handlers map[domain.QueueType]repository.ChangeHandler
	failOn   domain.QueueType
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[domain.QueueType]repository.ChangeHandler)}
}

func (f *fakeFeed) Subscribe(qt domain.QueueType, h repository.ChangeHandler) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if qt == f.failOn {
		return nil, domain.NewStoreError("listen", context.DeadlineExceeded)
	}
	f.handlers[qt] = h
	return fakeSubscription(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, qt)
	}), nil
}

func (f *fakeFeed) fire(ctx context.Context, qt domain.QueueType) {
	f.mu.Lock()
	h := f.handlers[qt]
	f.mu.Unlock()
	if h != nil {
		h(ctx, repository.ChangeEvent{Op: repository.ChangeUpdate, QueueType: qt})
	}
}

func (f *fakeFeed) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeSubscription func()

func (s fakeSubscription) Unsubscribe() { s() }

// steppingClock returns strictly increasing times so createdAt ordering is deterministic.
type steppingClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{cur: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func newTestQueueService(repo repository.QueueRepository, dispatcher NotificationDispatcher) *queueService {
	svc := NewQueueService(repo, dispatcher).(*queueService)
	svc.now = newSteppingClock().Now
	return svc
}
