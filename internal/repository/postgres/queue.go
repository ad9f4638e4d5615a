package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
)

const queueColumns = `id, first_name, last_name, email, reason, queue_type, status, position,
	created_at, updated_at, approved_at, declined_at, COALESCE(admin_notes, ''), COALESCE(decline_reason, '')`

type queueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) repository.QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Create(ctx context.Context, e *domain.QueueEntry) error {
	logger.EnterMethod("queueRepository.Create", "queueType", e.QueueType, "position", e.Position)

	query := `INSERT INTO queue_entries (first_name, last_name, email, reason, queue_type, status, position, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	logger.DatabaseCall("INSERT", "queue_entries", "queueType", e.QueueType)

	err := r.db.QueryRowContext(ctx, query, e.FirstName, e.LastName, e.Email, e.Reason, e.QueueType, e.Status, e.Position, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	logger.DatabaseResult("INSERT", 1, err, "id", e.ID)
	if err != nil {
		logger.ExitMethodWithError("queueRepository.Create", err)
		return domain.NewStoreError("insert queue entry", err)
	}
	logger.ExitMethod("queueRepository.Create", "id", e.ID)
	return nil
}

func (r *queueRepository) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStoreError("get queue entry", err)
	}
	return e, nil
}

func (r *queueRepository) Update(ctx context.Context, e *domain.QueueEntry) error {
	query := `UPDATE queue_entries SET status = $1, position = $2, updated_at = $3, approved_at = $4, declined_at = $5,
	          admin_notes = $6, decline_reason = $7 WHERE id = $8`
	logger.DatabaseCall("UPDATE", "queue_entries", "id", e.ID, "status", e.Status)
	result, err := r.db.ExecContext(ctx, query, e.Status, e.Position, e.UpdatedAt, e.ApprovedAt, e.DeclinedAt,
		nullString(e.AdminNotes), nullString(e.DeclineReason), e.ID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return domain.NewStoreError("update queue entry", err)
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err)
	if err != nil {
		return domain.NewStoreError("update queue entry", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *queueRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return domain.NewStoreError("delete queue entry", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("delete queue entry", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *queueRepository) MaxPosition(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus) (int, error) {
	var highest int
	query := `SELECT COALESCE(MAX(position), 0) FROM queue_entries WHERE queue_type = $1 AND status = $2`
	if err := r.db.QueryRowContext(ctx, query, queueType, status).Scan(&highest); err != nil {
		return 0, domain.NewStoreError("max position", err)
	}
	return highest, nil
}

func (r *queueRepository) CountByStatus(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus) (int, error) {
	var count int
	query := `SELECT count(*) FROM queue_entries WHERE queue_type = $1 AND status = $2`
	if err := r.db.QueryRowContext(ctx, query, queueType, status).Scan(&count); err != nil {
		return 0, domain.NewStoreError("count queue entries", err)
	}
	return count, nil
}

func (r *queueRepository) ListByStatus(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus, order repository.ListOrder) ([]domain.QueueEntry, error) {
	var rows *sql.Rows
	var err error
	if queueType == "" {
		query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE status = $1 ORDER BY ` + orderClause(order)
		rows, err = r.db.QueryContext(ctx, query, status)
	} else {
		query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE queue_type = $1 AND status = $2 ORDER BY ` + orderClause(order)
		rows, err = r.db.QueryContext(ctx, query, queueType, status)
	}
	if err != nil {
		return nil, domain.NewStoreError("list queue entries", err)
	}
	return collectEntries(rows)
}

func (r *queueRepository) ListAll(ctx context.Context) ([]domain.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.NewStoreError("list all queue entries", err)
	}
	return collectEntries(rows)
}

func (r *queueRepository) UpdatePositions(ctx context.Context, positions map[string]int, updatedAt time.Time) error {
	if len(positions) == 0 {
		return nil
	}
	logger.EnterMethod("queueRepository.UpdatePositions", "count", len(positions))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("begin position update", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE queue_entries SET position = $1, updated_at = $2 WHERE id = $3`)
	if err != nil {
		return domain.NewStoreError("prepare position update", err)
	}
	defer stmt.Close()

	for id, pos := range positions {
		if _, err := stmt.ExecContext(ctx, pos, updatedAt, id); err != nil {
			logger.ExitMethodWithError("queueRepository.UpdatePositions", err, "id", id)
			return domain.NewStoreError(fmt.Sprintf("update position of %s", id), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("commit position update", err)
	}
	logger.ExitMethod("queueRepository.UpdatePositions")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	var approvedAt, declinedAt sql.NullTime
	err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Reason, &e.QueueType, &e.Status, &e.Position,
		&e.CreatedAt, &e.UpdatedAt, &approvedAt, &declinedAt, &e.AdminNotes, &e.DeclineReason)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		e.ApprovedAt = &approvedAt.Time
	}
	if declinedAt.Valid {
		e.DeclinedAt = &declinedAt.Time
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]domain.QueueEntry, error) {
	defer rows.Close()

	entries := []domain.QueueEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, domain.NewStoreError("scan queue entry", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("iterate queue entries", err)
	}
	return entries, nil
}

func orderClause(order repository.ListOrder) string {
	switch order {
	case repository.OrderByCreatedAsc:
		return "created_at ASC"
	case repository.OrderByCreatedDesc:
		return "created_at DESC"
	default:
		return "position ASC, created_at ASC"
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
