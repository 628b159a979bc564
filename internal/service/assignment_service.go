package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/lifecycle"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// AssignmentService handles case assignment.
type AssignmentService struct {
	uow     repository.UnitOfWork
	users   repository.UserRepository
	clock   lifecycle.Clock
	events  eventPublisher
	metrics *observability.Metrics
	logger  *zap.Logger
	retrier conflictRetrier
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	UnitOfWork repository.UnitOfWork
	UserRepo   repository.UserRepository
	Clock      lifecycle.Clock
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Retry      RetryConfig
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	clock := deps.Clock
	if clock == nil {
		clock = lifecycle.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		uow:     deps.UnitOfWork,
		users:   deps.UserRepo,
		clock:   clock,
		events:  eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		metrics: deps.Metrics,
		logger:  logger,
		retrier: conflictRetrier{cfg: deps.Retry, logger: logger, metrics: deps.Metrics},
	}
}

// Assign hands a case to an analyst. A case still in CREATED moves to
// ASSIGNED in the same write, recorded as an ASSIGNED entry followed by a
// STATUS_CHANGED entry. Later reassignments only change the assignee.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, caseID, assigneeID string) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !isManagerial(actor.Role) {
		return nil, apperrors.NewForbidden("only a manager or an admin may assign cases")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
		}
		return nil, err
	}
	if assignee.Role != domain.RoleAnalyst {
		return nil, apperrors.NewRoleMismatch("cases can only be assigned to analysts", map[string]any{
			"user_id":       assignee.ID,
			"role":          assignee.Role,
			"required_role": domain.RoleAnalyst,
		})
	}
	if !assignee.Active {
		return nil, apperrors.NewValidationError("assignee is inactive", map[string]any{"user_id": assignee.ID})
	}

	var (
		assigned       *domain.Case
		previous       *string
		autoTransition bool
	)
	err = s.retrier.run(ctx, "assign", caseID, func() error {
		return s.uow.Within(ctx, func(store repository.Store) error {
			c, err := store.Cases().GetByID(ctx, caseID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
				}
				return err
			}

			now := s.clock.Now().UTC()
			fromStatus := c.Status
			previous = c.AssigneeID
			autoTransition = lifecycle.CanAssign(fromStatus)

			newAssignee := assignee.ID
			c.AssigneeID = &newAssignee
			if autoTransition {
				c.Status = domain.CaseStatusAssigned
			}
			c.UpdatedAt = now
			if err := store.Cases().Update(ctx, c, fromStatus); err != nil {
				return err
			}

			if err := store.Audit().Append(ctx, &domain.AuditEntry{
				CaseID:           c.ID,
				Action:           domain.AuditActionAssigned,
				PreviousAssignee: previous,
				NewAssignee:      &newAssignee,
				PerformedBy:      actor.ID,
				Details:          map[string]any{},
				CreatedAt:        now,
			}); err != nil {
				return err
			}
			if autoTransition {
				next := c.Status
				if err := store.Audit().Append(ctx, &domain.AuditEntry{
					CaseID:         c.ID,
					Action:         domain.AuditActionStatusChanged,
					PreviousStatus: &fromStatus,
					NewStatus:      &next,
					PerformedBy:    actor.ID,
					Details:        map[string]any{"reason": domain.TransitionReasonAutoAssignment},
					CreatedAt:      now,
				}); err != nil {
					return err
				}
			}
			assigned = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAssignment(autoTransition)
	s.logger.Info("case assigned",
		zap.String("case_id", assigned.ID),
		zap.String("assignee_id", assignee.ID),
		zap.Bool("auto_transition", autoTransition),
		zap.String("performed_by", actor.ID),
	)
	s.events.publish(ctx, actor, assigned, events.EventCaseAssigned, events.CaseAssignedPayload{
		PreviousAssigneeID: previous,
		AssigneeID:         assignee.ID,
	})
	if autoTransition {
		s.metrics.RecordTransition(string(domain.CaseStatusCreated), string(domain.CaseStatusAssigned), observability.OutcomeCommitted)
		s.events.publish(ctx, actor, assigned, events.EventCaseStatusChanged, events.CaseStatusChangedPayload{
			OldStatus: domain.CaseStatusCreated,
			NewStatus: domain.CaseStatusAssigned,
			Reason:    domain.TransitionReasonAutoAssignment,
		})
	}
	return assigned, nil
}
