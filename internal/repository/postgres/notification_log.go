package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
)

// notificationAttributes is the JSONB payload of a log row.
type notificationAttributes struct {
	QueuePosition int    `json:"queuePosition,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type notificationLogRepository struct {
	db *sql.DB
}

func NewNotificationLogRepository(db *sql.DB) repository.NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) Create(ctx context.Context, rec *domain.NotificationRecord) error {
	logger.EnterMethod("notificationLogRepository.Create", "entryID", rec.EntryID, "type", rec.Type, "status", rec.Status)

	attrs, err := json.Marshal(notificationAttributes{QueuePosition: rec.QueuePosition, Reason: rec.Reason})
	if err != nil {
		logger.ExitMethodWithError("notificationLogRepository.Create", err, "reason", "failed to marshal attributes")
		return err
	}

	query := `INSERT INTO notification_log (entry_id, type, email, status, email_id, attributes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "notification_log", "entryID", rec.EntryID)

	err = r.db.QueryRowContext(ctx, query, nullString(rec.EntryID), rec.Type, rec.Email, rec.Status,
		nullString(rec.EmailID), attrs, rec.CreatedAt).Scan(&rec.ID)
	logger.DatabaseResult("INSERT", 1, err, "recordID", rec.ID)
	if err != nil {
		logger.ExitMethodWithError("notificationLogRepository.Create", err)
		return domain.NewStoreError("insert notification log", err)
	}
	logger.ExitMethod("notificationLogRepository.Create", "recordID", rec.ID)
	return nil
}

func (r *notificationLogRepository) ListByEntry(ctx context.Context, entryID string) ([]domain.NotificationRecord, error) {
	query := `SELECT id, COALESCE(entry_id::text, ''), type, email, status, COALESCE(email_id, ''), attributes, created_at
	          FROM notification_log WHERE entry_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, domain.NewStoreError("list notification log", err)
	}
	defer rows.Close()

	records := []domain.NotificationRecord{}
	for rows.Next() {
		var rec domain.NotificationRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.EntryID, &rec.Type, &rec.Email, &rec.Status, &rec.EmailID, &raw, &rec.CreatedAt); err != nil {
			return nil, domain.NewStoreError("scan notification log", err)
		}
		if len(raw) > 0 {
			var attrs notificationAttributes
			if err := json.Unmarshal(raw, &attrs); err != nil {
				return nil, domain.NewStoreError("decode notification attributes", err)
			}
			rec.QueuePosition = attrs.QueuePosition
			rec.Reason = attrs.Reason
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list notification log", err)
	}
	return records, nil
}
