package service

import (
	"context"
	"errors"
	"strings"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/security"
)

var ErrMissingIDToken = errors.New("identity token is required")

type authService struct {
	verifier security.IdentityVerifier
	codes    AdminCodeService
	tokens   security.TokenManager
}

func NewAuthService(verifier security.IdentityVerifier, codes AdminCodeService, tokens security.TokenManager) AuthService {
	return &authService{
		verifier: verifier,
		codes:    codes,
		tokens:   tokens,
	}
}

// CreateAdminSession verifies the caller's identity and the role's admin code, then issues a session token.
func (s *authService) CreateAdminSession(ctx context.Context, idToken string, role domain.AdminRole, code string) (*AdminSession, error) {
	logger.EnterMethod("authService.CreateAdminSession", "role", role)

	if strings.TrimSpace(idToken) == "" {
		return nil, ErrMissingIDToken
	}
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		logger.ExitMethodWithError("authService.CreateAdminSession", err)
		return nil, err
	}
	if err := s.codes.Verify(ctx, role, code); err != nil {
		logger.Warn("Admin code rejected", "role", role, "uid", identity.UID)
		return nil, err
	}

	token, expiresAt, err := s.tokens.GenerateAdminToken(*identity, role)
	if err != nil {
		logger.ExitMethodWithError("authService.CreateAdminSession", err)
		return nil, err
	}

	logger.ExitMethod("authService.CreateAdminSession", "uid", identity.UID, "role", role)
	return &AdminSession{
		Token:     token,
		ExpiresAt: expiresAt,
		Role:      role,
		Identity:  *identity,
	}, nil
}
