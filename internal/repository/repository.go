package repository

import (
	"context"
	"time"

	"consultation-queue-backend/internal/domain"
)

// QueueRepository is the CRUD surface over the queue_entries table.
// Implementations return domain.ErrNotFound for missing rows.
type QueueRepository interface {
	Create(ctx context.Context, entry *domain.QueueEntry) error
	GetByID(ctx context.Context, id string) (*domain.QueueEntry, error)
	Update(ctx context.Context, entry *domain.QueueEntry) error
	Delete(ctx context.Context, id string) error

	// MaxPosition returns the highest position with the given status, 0 when none exist.
	MaxPosition(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus) (int, error)
	CountByStatus(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus) (int, error)

	// ListByStatus filters by status and, when queueType is non-empty, by queue type.
	ListByStatus(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus, order ListOrder) ([]domain.QueueEntry, error)
	ListAll(ctx context.Context) ([]domain.QueueEntry, error)

	// UpdatePositions writes every id -> position pair atomically.
	UpdatePositions(ctx context.Context, positions map[string]int, updatedAt time.Time) error
}

type ListOrder int

const (
	OrderByPosition ListOrder = iota
	OrderByCreatedAsc
	OrderByCreatedDesc
)

type AdminCodeRepository interface {
	Get(ctx context.Context, role domain.AdminRole) (*domain.AdminCode, error)
	Upsert(ctx context.Context, code *domain.AdminCode) error
}

// NotificationLogRepository persists dispatch outcomes so deferred emails stay visible.
type NotificationLogRepository interface {
	Create(ctx context.Context, record *domain.NotificationRecord) error
	// ListByEntry returns the entry's records, newest first.
	ListByEntry(ctx context.Context, entryID string) ([]domain.NotificationRecord, error)
}

type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// ChangeEvent is one row mutation delivered by a ChangeFeed.
type ChangeEvent struct {
	Op        ChangeOp         `json:"op"`
	ID        string           `json:"id"`
	QueueType domain.QueueType `json:"queue_type"`
}

type ChangeHandler func(ctx context.Context, event ChangeEvent)

// ChangeFeed delivers queue_entries mutations filtered by queue type.
type ChangeFeed interface {
	Subscribe(queueType domain.QueueType, handler ChangeHandler) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}
