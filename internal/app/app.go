// Package app assembles repositories and services for the API server and the
// casectl tool.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/config"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/lifecycle"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/repository/memory"
	"github.com/spec-kit/case-service/internal/service"
)

// Backend is the storage the services run on.
type Backend struct {
	Name       string
	UnitOfWork repository.UnitOfWork
	Cases      repository.CaseRepository
	Audit      repository.AuditLedger
	Users      repository.UserRepository
}

// PostgresBackend stores everything through pool.
func PostgresBackend(pool *pgxpool.Pool) Backend {
	return Backend{
		Name:       "postgres",
		UnitOfWork: repository.NewUnitOfWork(pool),
		Cases:      repository.NewCaseRepository(pool),
		Audit:      repository.NewAuditRepository(pool),
		Users:      repository.NewUserRepository(pool),
	}
}

// MemoryBackend keeps everything in store.
func MemoryBackend(store *memory.Store) Backend {
	return Backend{
		Name:       "memory",
		UnitOfWork: store,
		Cases:      store.Cases(),
		Audit:      store.Audit(),
		Users:      store.Users(),
	}
}

// Services groups the application services.
type Services struct {
	Cases      *service.CaseService
	Assignment *service.AssignmentService
	Audit      *service.AuditService
	Users      *service.UserService
	Auth       *service.AuthService
}

// Options carries the cross-cutting collaborators shared by all services.
type Options struct {
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      lifecycle.Clock
}

// NewServices wires the services onto backend.
func NewServices(cfg *config.Config, backend Backend, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := service.RetryConfig{
		Retries:         cfg.Lifecycle.ConflictRetries,
		InitialInterval: cfg.Lifecycle.RetryInitialInterval(),
	}

	return &Services{
		Cases: service.NewCaseService(service.CaseDependencies{
			UnitOfWork: backend.UnitOfWork,
			CaseRepo:   backend.Cases,
			Clock:      opts.Clock,
			Dispatcher: opts.Dispatcher,
			Metrics:    opts.Metrics,
			Logger:     logger.Named("cases"),
			Retry:      retry,
		}),
		Assignment: service.NewAssignmentService(service.AssignmentDependencies{
			UnitOfWork: backend.UnitOfWork,
			UserRepo:   backend.Users,
			Clock:      opts.Clock,
			Dispatcher: opts.Dispatcher,
			Metrics:    opts.Metrics,
			Logger:     logger.Named("assignment"),
			Retry:      retry,
		}),
		Audit: service.NewAuditService(service.AuditDependencies{
			CaseRepo:  backend.Cases,
			AuditRepo: backend.Audit,
		}),
		Users: service.NewUserService(service.UserDependencies{
			UserRepo:   backend.Users,
			BcryptCost: cfg.Auth.BcryptCost,
			Logger:     logger.Named("users"),
		}),
		Auth: service.NewAuthService(service.AuthDependencies{
			UserRepo:     backend.Users,
			TokenManager: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		}),
	}
}
