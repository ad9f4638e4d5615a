package service

import (
	"context"
	"time"

	"consultation-queue-backend/internal/domain"
)

type QueueService interface {
	AddToQueue(ctx context.Context, firstName, lastName, email, reason string, queueType domain.QueueType) (*domain.QueueEntry, error)
	NextPosition(ctx context.Context, queueType domain.QueueType) (int, error)
	GetQueueCount(ctx context.Context, queueType domain.QueueType) (int, error)
	GetQueueEntry(ctx context.Context, id string) (*domain.QueueEntry, error)
	GetQueueEntries(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error)
	GetApprovedQueueEntries(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error)
	GetAllQueueEntries(ctx context.Context) ([]domain.QueueEntry, error)
	GetPendingQueueEntries(ctx context.Context) ([]domain.QueueEntry, error)
	UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus) (*domain.QueueEntry, error)
	ApproveQueueEntry(ctx context.Context, id, adminNotes string) (*domain.QueueEntry, error)
	DeclineQueueEntry(ctx context.Context, id, reason string) (*domain.QueueEntry, error)
	// RecalculateQueuePositions renumbers the approved set and returns it in its new order.
	RecalculateQueuePositions(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error)
	// ReconcileWaitingPositions renumbers the waiting set and returns how many rows changed.
	ReconcileWaitingPositions(ctx context.Context, queueType domain.QueueType) (int, error)
	RemoveFromQueueWithUpdate(ctx context.Context, id string, queueType domain.QueueType) error
	// Close blocks until in-flight approval and decline emails finish or ctx expires.
	Close(ctx context.Context) error
}

type PositionMonitor interface {
	Start(ctx context.Context) error
	Stop()
	IsMonitoring() bool
	ActiveSubscriptions() []domain.QueueType
	TriggerPositionUpdate(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error)
	// Observe registers fn to receive the working set fetched after every change event.
	Observe(fn SnapshotFunc)
}

// SnapshotFunc receives the waiting and approved entries of one queue type.
type SnapshotFunc func(queueType domain.QueueType, waiting, approved []domain.QueueEntry)

type NotificationDispatcher interface {
	Send(ctx context.Context, n domain.Notification) domain.DispatchResult
	SendEmail(ctx context.Context, to, name, surname string, kind domain.NotificationType, queuePosition int, reason string) domain.DispatchResult
}

// NotificationLog is a NotificationDispatcher that keeps every outcome for later inspection.
type NotificationLog interface {
	NotificationDispatcher
	// History lists the dispatch records of one queue entry, newest first.
	History(ctx context.Context, entryID string) ([]domain.NotificationRecord, error)
}

// EmailSender delivers a rendered payload and returns the provider's message id.
type EmailSender interface {
	Name() string
	Send(ctx context.Context, payload domain.EmailPayload) (string, error)
}

type AdminService interface {
	Approve(ctx context.Context, id, notes string, desiredPosition int) (*domain.QueueEntry, error)
	Decline(ctx context.Context, id, reason string) (*domain.QueueEntry, error)
	Resend(ctx context.Context, id string) (domain.DispatchResult, error)
	UpdatePosition(ctx context.Context, id string) (*domain.QueueEntry, domain.DispatchResult, error)
	CallNext(ctx context.Context, id string) (domain.DispatchResult, error)
}

type AdminCodeService interface {
	Verify(ctx context.Context, role domain.AdminRole, code string) error
	Regenerate(ctx context.Context, role domain.AdminRole) (string, error)
	// EnsureCodes creates codes for roles that have none and returns only the new plaintexts.
	EnsureCodes(ctx context.Context) (map[domain.AdminRole]string, error)
}

type AuthService interface {
	CreateAdminSession(ctx context.Context, idToken string, role domain.AdminRole, code string) (*AdminSession, error)
}

type AdminSession struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Role      domain.AdminRole `json:"role"`
	Identity  domain.Identity  `json:"identity"`
}
