package postgres

import (
	"context"
	"database/sql"
	"errors"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/repository"
)

type adminCodeRepository struct {
	db *sql.DB
}

func NewAdminCodeRepository(db *sql.DB) repository.AdminCodeRepository {
	return &adminCodeRepository{db: db}
}

func (r *adminCodeRepository) Get(ctx context.Context, role domain.AdminRole) (*domain.AdminCode, error) {
	code := &domain.AdminCode{}
	query := `SELECT role, code_hash, updated_at FROM admin_codes WHERE role = $1`
	err := r.db.QueryRowContext(ctx, query, role).Scan(&code.Role, &code.CodeHash, &code.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStoreError("get admin code", err)
	}
	return code, nil
}

func (r *adminCodeRepository) Upsert(ctx context.Context, code *domain.AdminCode) error {
	query := `INSERT INTO admin_codes (role, code_hash, updated_at) VALUES ($1, $2, $3)
	          ON CONFLICT (role) DO UPDATE SET code_hash = EXCLUDED.code_hash, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, code.Role, code.CodeHash, code.UpdatedAt); err != nil {
		return domain.NewStoreError("upsert admin code", err)
	}
	return nil
}
