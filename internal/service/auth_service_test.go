package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tokens := auth.NewTokenManager("login-secret", 5)
	svc := NewAuthService(AuthDependencies{UserRepo: h.store.Users(), TokenManager: tokens})

	user, err := h.users.Provision(ctx, h.admin, UserCreateInput{
		Name:     "Lee Lead",
		Email:    "lee@example.com",
		Password: "long password",
		Role:     domain.RoleManager,
	})
	require.NoError(t, err)

	got, token, exp, err := svc.Login(ctx, " LEE@example.com ", "long password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.False(t, exp.IsZero())

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleManager, claims.Role)
}

func TestLogin_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := NewAuthService(AuthDependencies{UserRepo: h.store.Users(), TokenManager: auth.NewTokenManager("s", 5)})

	hash, err := auth.HashPassword("long password", 4)
	require.NoError(t, err)
	require.NoError(t, h.store.Users().Create(ctx, &domain.User{
		ID: "u-gone", Name: "Gone", Email: "gone@example.com", PasswordHash: hash, Role: domain.RoleAnalyst,
	}))

	_, _, _, err = svc.Login(ctx, "nobody@example.com", "long password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, _, _, err = svc.Login(ctx, "gone@example.com", "wrong password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, _, _, err = svc.Login(ctx, "gone@example.com", "long password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "inactive")
}
