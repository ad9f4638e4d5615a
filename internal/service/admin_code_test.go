package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"consultation-queue-backend/internal/domain"
)

type MockAdminCodeRepository struct {
	mock.Mock
}

func (m *MockAdminCodeRepository) Get(ctx context.Context, role domain.AdminRole) (*domain.AdminCode, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminCode), args.Error(1)
}

func (m *MockAdminCodeRepository) Upsert(ctx context.Context, code *domain.AdminCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func newTestAdminCodeService(repo *MockAdminCodeRepository) *adminCodeService {
	svc := NewAdminCodeService(repo).(*adminCodeService)
	svc.cost = bcrypt.MinCost
	return svc
}

func hashedCode(t *testing.T, role domain.AdminRole, code string) *domain.AdminCode {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.AdminCode{Role: role, CodeHash: string(hash)}
}

func TestAdminCodeService_Verify(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAdminCodeRepository)
	repo.On("Get", mock.Anything, domain.AdminRolePastor).Return(hashedCode(t, domain.AdminRolePastor, "K7M2PQ9X"), nil)
	repo.On("Get", mock.Anything, domain.AdminRoleOverseer).Return(nil, domain.ErrNotFound)
	svc := newTestAdminCodeService(repo)

	assert.NoError(t, svc.Verify(ctx, domain.AdminRolePastor, "K7M2PQ9X"))
	assert.NoError(t, svc.Verify(ctx, domain.AdminRolePastor, "  k7m2pq9x "))
	assert.ErrorIs(t, svc.Verify(ctx, domain.AdminRolePastor, "WRONG123"), domain.ErrInvalidAdminCode)
	assert.ErrorIs(t, svc.Verify(ctx, domain.AdminRoleOverseer, "K7M2PQ9X"), domain.ErrInvalidAdminCode)
	assert.True(t, domain.IsValidation(svc.Verify(ctx, domain.AdminRole("deacon"), "K7M2PQ9X")))
}

func TestAdminCodeService_VerifyStoreError(t *testing.T) {
	repo := new(MockAdminCodeRepository)
	repo.On("Get", mock.Anything, domain.AdminRolePastor).Return(nil, domain.NewStoreError("get admin code", errors.New("timeout")))
	svc := newTestAdminCodeService(repo)

	err := svc.Verify(context.Background(), domain.AdminRolePastor, "K7M2PQ9X")
	assert.True(t, domain.IsStoreError(err))
	assert.NotErrorIs(t, err, domain.ErrInvalidAdminCode)
}

func TestAdminCodeService_Regenerate(t *testing.T) {
	repo := new(MockAdminCodeRepository)
	var stored *domain.AdminCode
	repo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.AdminCode")).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.AdminCode)
	}).Return(nil)
	svc := newTestAdminCodeService(repo)

	code, err := svc.Regenerate(context.Background(), domain.AdminRoleOverseer)
	require.NoError(t, err)
	assert.Len(t, code, adminCodeLength)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(adminCodeAlphabet, c), "unexpected character %q", c)
	}

	require.NotNil(t, stored)
	assert.Equal(t, domain.AdminRoleOverseer, stored.Role)
	assert.NotEqual(t, code, stored.CodeHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(code)))
	assert.False(t, stored.UpdatedAt.IsZero())

	_, err = svc.Regenerate(context.Background(), domain.AdminRole(""))
	assert.True(t, domain.IsValidation(err))
}

func TestAdminCodeService_EnsureCodes(t *testing.T) {
	repo := new(MockAdminCodeRepository)
	repo.On("Get", mock.Anything, domain.AdminRoleOverseer).Return(hashedCode(t, domain.AdminRoleOverseer, "ABCDEFGH"), nil)
	repo.On("Get", mock.Anything, domain.AdminRolePastor).Return(nil, domain.ErrNotFound)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.AdminCode) bool {
		return c.Role == domain.AdminRolePastor
	})).Return(nil).Once()
	svc := newTestAdminCodeService(repo)

	created, err := svc.EnsureCodes(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Len(t, created[domain.AdminRolePastor], adminCodeLength)
	repo.AssertExpectations(t)
}

func TestGenerateAdminCode_IsRandom(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateAdminCode()
		require.NoError(t, err)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}
