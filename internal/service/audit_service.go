package service

import (
	"context"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository"
)

// AuditService exposes the read side of the audit ledger.
type AuditService struct {
	cases repository.CaseRepository
	audit repository.AuditLedger
}

// AuditDependencies bundles repositories.
type AuditDependencies struct {
	CaseRepo  repository.CaseRepository
	AuditRepo repository.AuditLedger
}

// NewAuditService builds the service.
func NewAuditService(deps AuditDependencies) *AuditService {
	return &AuditService{cases: deps.CaseRepo, audit: deps.AuditRepo}
}

// Trail returns the history of a case visible to actor, newest first.
func (s *AuditService) Trail(ctx context.Context, actor *domain.User, caseID string) ([]domain.AuditTrailEntry, error) {
	if _, err := loadVisibleCase(ctx, s.cases, actor, caseID); err != nil {
		return nil, err
	}
	return s.audit.Trail(ctx, caseID)
}
