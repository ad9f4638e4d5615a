package postgres

import (
	"database/sql"

	"consultation-queue-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.QueueRepository
	repository.AdminCodeRepository
	repository.NotificationLogRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                  db,
		QueueRepository:     NewQueueRepository(db),
		AdminCodeRepository: NewAdminCodeRepository(db),

		NotificationLogRepository: NewNotificationLogRepository(db),
	}
}

// DB exposes the pool for jobs that run ad-hoc maintenance queries.
func (s *Store) DB() *sql.DB {
	return s.db
}
