package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

func TestProvision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.users.Provision(ctx, h.admin, UserCreateInput{
		Name:     "New Analyst",
		Email:    "New.Analyst@Example.com",
		Password: "correct horse",
		Role:     domain.RoleAnalyst,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.analyst@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, auth.ComparePassword(user.PasswordHash, "correct horse"))

	stored, err := h.store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAnalyst, stored.Role)

	_, err = h.assignment.Assign(ctx, h.manager, h.createCase(t, domain.CasePriorityLow).ID, user.ID)
	assert.NoError(t, err)
}

func TestProvision_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	valid := UserCreateInput{Name: "X", Email: "x@example.com", Password: "long enough", Role: domain.RoleAnalyst}

	_, err := h.users.Provision(ctx, h.manager, valid)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	short := valid
	short.Password = "short"
	_, err = h.users.Provision(ctx, h.admin, short)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	badRole := valid
	badRole.Role = "SUPERUSER"
	_, err = h.users.Provision(ctx, h.admin, badRole)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	duplicate := valid
	duplicate.Email = "ANA@example.com"
	_, err = h.users.Provision(ctx, h.admin, duplicate)
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, apperrors.CodeConflict, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.False(t, de.Retryable)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	none, err := h.users.EnsureBootstrapAdmin(ctx, "", "ignored")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := h.users.EnsureBootstrapAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.Role)

	again, err := h.users.EnsureBootstrapAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}
