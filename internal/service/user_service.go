package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// UserService provisions accounts.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles collaborators.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	BcryptCost int
	Logger     *zap.Logger
}

// UserCreateInput describes a new account.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: deps.UserRepo, bcryptCost: deps.BcryptCost, logger: logger}
}

// Provision creates an account on behalf of an admin.
func (s *UserService) Provision(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only an admin may create users")
	}
	user, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user provisioned",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("performed_by", actor.ID),
	)
	return user, nil
}

// EnsureBootstrapAdmin creates the first admin account if email is not yet
// registered. It is a no-op when email is empty.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	user, err := s.create(ctx, UserCreateInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

func (s *UserService) create(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "password"})
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDomainError(apperrors.CodeConflict, "email already registered", http.StatusConflict, map[string]any{"email": email})
		}
		return nil, err
	}
	return user, nil
}
