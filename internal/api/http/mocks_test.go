package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/service"
)

type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) entry(args mock.Arguments) (*domain.QueueEntry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueService) entries(args mock.Arguments) ([]domain.QueueEntry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *MockQueueService) AddToQueue(ctx context.Context, firstName, lastName, email, reason string, queueType domain.QueueType) (*domain.QueueEntry, error) {
	return m.entry(m.Called(ctx, firstName, lastName, email, reason, queueType))
}

func (m *MockQueueService) NextPosition(ctx context.Context, queueType domain.QueueType) (int, error) {
	args := m.Called(ctx, queueType)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueService) GetQueueCount(ctx context.Context, queueType domain.QueueType) (int, error) {
	args := m.Called(ctx, queueType)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueService) GetQueueEntry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	return m.entry(m.Called(ctx, id))
}

func (m *MockQueueService) GetQueueEntries(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	return m.entries(m.Called(ctx, queueType))
}

func (m *MockQueueService) GetApprovedQueueEntries(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	return m.entries(m.Called(ctx, queueType))
}

func (m *MockQueueService) GetAllQueueEntries(ctx context.Context) ([]domain.QueueEntry, error) {
	return m.entries(m.Called(ctx))
}

func (m *MockQueueService) GetPendingQueueEntries(ctx context.Context) ([]domain.QueueEntry, error) {
	return m.entries(m.Called(ctx))
}

func (m *MockQueueService) UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus) (*domain.QueueEntry, error) {
	return m.entry(m.Called(ctx, id, status))
}

func (m *MockQueueService) ApproveQueueEntry(ctx context.Context, id, adminNotes string) (*domain.QueueEntry, error) {
	return m.entry(m.Called(ctx, id, adminNotes))
}

func (m *MockQueueService) DeclineQueueEntry(ctx context.Context, id, reason string) (*domain.QueueEntry, error) {
	return m.entry(m.Called(ctx, id, reason))
}

func (m *MockQueueService) RecalculateQueuePositions(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	return m.entries(m.Called(ctx, queueType))
}

func (m *MockQueueService) ReconcileWaitingPositions(ctx context.Context, queueType domain.QueueType) (int, error) {
	args := m.Called(ctx, queueType)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueService) RemoveFromQueueWithUpdate(ctx context.Context, id string, queueType domain.QueueType) error {
	return m.Called(ctx, id, queueType).Error(0)
}

func (m *MockQueueService) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Approve(ctx context.Context, id, notes string, desiredPosition int) (*domain.QueueEntry, error) {
	args := m.Called(ctx, id, notes, desiredPosition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockAdminService) Decline(ctx context.Context, id, reason string) (*domain.QueueEntry, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockAdminService) Resend(ctx context.Context, id string) (domain.DispatchResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.DispatchResult), args.Error(1)
}

func (m *MockAdminService) UpdatePosition(ctx context.Context, id string) (*domain.QueueEntry, domain.DispatchResult, error) {
	args := m.Called(ctx, id)
	var entry *domain.QueueEntry
	if args.Get(0) != nil {
		entry = args.Get(0).(*domain.QueueEntry)
	}
	return entry, args.Get(1).(domain.DispatchResult), args.Error(2)
}

func (m *MockAdminService) CallNext(ctx context.Context, id string) (domain.DispatchResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.DispatchResult), args.Error(1)
}

type MockAdminCodeService struct {
	mock.Mock
}

func (m *MockAdminCodeService) Verify(ctx context.Context, role domain.AdminRole, code string) error {
	return m.Called(ctx, role, code).Error(0)
}

func (m *MockAdminCodeService) Regenerate(ctx context.Context, role domain.AdminRole) (string, error) {
	args := m.Called(ctx, role)
	return args.String(0), args.Error(1)
}

func (m *MockAdminCodeService) EnsureCodes(ctx context.Context) (map[domain.AdminRole]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[domain.AdminRole]string), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateAdminSession(ctx context.Context, idToken string, role domain.AdminRole, code string) (*service.AdminSession, error) {
	args := m.Called(ctx, idToken, role, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AdminSession), args.Error(1)
}

type MockPositionMonitor struct {
	mock.Mock
}

func (m *MockPositionMonitor) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockPositionMonitor) Stop()                           { m.Called() }
func (m *MockPositionMonitor) IsMonitoring() bool              { return m.Called().Bool(0) }

func (m *MockPositionMonitor) ActiveSubscriptions() []domain.QueueType {
	return m.Called().Get(0).([]domain.QueueType)
}

func (m *MockPositionMonitor) TriggerPositionUpdate(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, queueType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *MockPositionMonitor) Observe(fn service.SnapshotFunc) { m.Called(fn) }

type MockNotificationLog struct {
	mock.Mock
}

func (m *MockNotificationLog) Send(ctx context.Context, n domain.Notification) domain.DispatchResult {
	return m.Called(ctx, n).Get(0).(domain.DispatchResult)
}

func (m *MockNotificationLog) SendEmail(ctx context.Context, to, name, surname string, kind domain.NotificationType, queuePosition int, reason string) domain.DispatchResult {
	return m.Called(ctx, to, name, surname, kind, queuePosition, reason).Get(0).(domain.DispatchResult)
}

func (m *MockNotificationLog) History(ctx context.Context, entryID string) ([]domain.NotificationRecord, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NotificationRecord), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }
