package service

import (
	"context"
	"time"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
)

type notificationLog struct {
	inner NotificationDispatcher
	repo  repository.NotificationLogRepository
	now   func() time.Time
}

// NewNotificationLog wraps inner so that every dispatch outcome is written to repo.
// A failed write is logged and never changes the result.
func NewNotificationLog(inner NotificationDispatcher, repo repository.NotificationLogRepository) NotificationLog {
	return &notificationLog{inner: inner, repo: repo, now: time.Now}
}

func (l *notificationLog) Send(ctx context.Context, n domain.Notification) domain.DispatchResult {
	res := l.inner.Send(ctx, n)
	if n != nil {
		l.record(ctx, n, res)
	}
	return res
}

func (l *notificationLog) SendEmail(ctx context.Context, to, name, surname string, kind domain.NotificationType, queuePosition int, reason string) domain.DispatchResult {
	n, err := buildNotification(to, name, surname, kind, queuePosition, reason)
	if err != nil {
		return rejected(kind, err)
	}
	return l.Send(ctx, n)
}

func (l *notificationLog) History(ctx context.Context, entryID string) ([]domain.NotificationRecord, error) {
	return l.repo.ListByEntry(ctx, entryID)
}

func (l *notificationLog) record(ctx context.Context, n domain.Notification, res domain.DispatchResult) {
	rec := domain.NewNotificationRecord(n, res, l.now().UTC())
	if err := l.repo.Create(ctx, rec); err != nil {
		logger.Warn("Failed to record notification outcome", "entry_id", rec.EntryID, "type", rec.Type, "status", rec.Status, "error", err)
	}
}
