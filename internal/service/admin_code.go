package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
)

const (
	adminCodeLength   = 8
	adminCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type adminCodeService struct {
	repo repository.AdminCodeRepository
	cost int
	now  func() time.Time
}

func NewAdminCodeService(repo repository.AdminCodeRepository) AdminCodeService {
	return &adminCodeService{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

func (s *adminCodeService) Verify(ctx context.Context, role domain.AdminRole, code string) error {
	if !role.Valid() {
		return &domain.ValidationError{Field: "role", Message: "must be one of overseer, pastor"}
	}
	stored, err := s.repo.Get(ctx, role)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidAdminCode
		}
		return err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(code)); err != nil {
		return domain.ErrInvalidAdminCode
	}
	return nil
}

// Regenerate replaces the role's code and returns the new plaintext, which is not stored.
func (s *adminCodeService) Regenerate(ctx context.Context, role domain.AdminRole) (string, error) {
	if !role.Valid() {
		return "", &domain.ValidationError{Field: "role", Message: "must be one of overseer, pastor"}
	}
	code, err := generateAdminCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin code: %w", err)
	}
	if err := s.repo.Upsert(ctx, &domain.AdminCode{Role: role, CodeHash: string(hash), UpdatedAt: s.now().UTC()}); err != nil {
		return "", err
	}
	logger.Info("Admin code regenerated", "role", role)
	return code, nil
}

func (s *adminCodeService) EnsureCodes(ctx context.Context) (map[domain.AdminRole]string, error) {
	created := make(map[domain.AdminRole]string)
	for _, role := range domain.AdminRoles {
		_, err := s.repo.Get(ctx, role)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		code, err := s.Regenerate(ctx, role)
		if err != nil {
			return nil, err
		}
		created[role] = code
	}
	return created, nil
}

func generateAdminCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(adminCodeAlphabet)))
	for i := 0; i < adminCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate admin code: %w", err)
		}
		b.WriteByte(adminCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
