package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/lifecycle"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// CaseService coordinates case creation, edits and status transitions.
type CaseService struct {
	uow     repository.UnitOfWork
	cases   repository.CaseRepository
	clock   lifecycle.Clock
	events  eventPublisher
	metrics *observability.Metrics
	logger  *zap.Logger
	retrier conflictRetrier
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	UnitOfWork repository.UnitOfWork
	CaseRepo   repository.CaseRepository
	Clock      lifecycle.Clock
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Retry      RetryConfig
}

// CaseCreateInput describes case creation payload.
type CaseCreateInput struct {
	Title       string
	Description string
	Category    domain.CaseCategory
	Priority    domain.CasePriority
}

// CaseUpdateInput carries the fields to change; nil means unchanged.
type CaseUpdateInput struct {
	Title       *string
	Description *string
	Category    *domain.CaseCategory
	Priority    *domain.CasePriority
}

// TransitionInput requests a status change.
type TransitionInput struct {
	To      domain.CaseStatus
	Comment string
}

// CaseListFilter describes listing filters.
type CaseListFilter struct {
	AssigneeID *string
	Statuses   []domain.CaseStatus
	Priorities []domain.CasePriority
	Categories []domain.CaseCategory
	SearchTerm *string
	Limit      int
	Offset     int
}

// CaseView is a case with its SLA classification at read time.
type CaseView struct {
	Case domain.Case
	SLA  lifecycle.SLAState
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	clock := deps.Clock
	if clock == nil {
		clock = lifecycle.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		uow:     deps.UnitOfWork,
		cases:   deps.CaseRepo,
		clock:   clock,
		events:  eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		metrics: deps.Metrics,
		logger:  logger,
		retrier: conflictRetrier{cfg: deps.Retry, logger: logger, metrics: deps.Metrics},
	}
}

// Create opens a new case in CREATED status.
func (s *CaseService) Create(ctx context.Context, actor *domain.User, input CaseCreateInput) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if input.Priority == "" {
		input.Priority = domain.CasePriorityMedium
	}
	if input.Category == "" {
		input.Category = domain.CaseCategoryGeneral
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	now := s.clock.Now().UTC()
	created := &domain.Case{
		ID:          uuid.NewString(),
		Code:        generateCaseCode(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.CaseStatusCreated,
		CreatedBy:   actor.ID,
		SLADueAt:    lifecycle.DueAt(input.Priority, now),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	err := s.uow.Within(ctx, func(store repository.Store) error {
		if err := store.Cases().Create(ctx, created); err != nil {
			return err
		}
		status := created.Status
		return store.Audit().Append(ctx, &domain.AuditEntry{
			CaseID:      created.ID,
			Action:      domain.AuditActionCaseCreated,
			NewStatus:   &status,
			PerformedBy: actor.ID,
			Details: map[string]any{
				"title":    created.Title,
				"category": created.Category,
				"priority": created.Priority,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("case created",
		zap.String("case_id", created.ID),
		zap.String("code", created.Code),
		zap.String("performed_by", actor.ID),
	)
	s.events.publish(ctx, actor, created, events.EventCaseCreated, events.CaseCreatedPayload{
		Title:    created.Title,
		Category: created.Category,
		Priority: created.Priority,
		SLADueAt: created.SLADueAt,
	})
	return created, nil
}

// Get returns a case visible to actor.
func (s *CaseService) Get(ctx context.Context, actor *domain.User, caseID string) (*CaseView, error) {
	c, err := loadVisibleCase(ctx, s.cases, actor, caseID)
	if err != nil {
		return nil, err
	}
	return &CaseView{Case: *c, SLA: s.classify(c)}, nil
}

// List returns cases matching filter that actor may see.
func (s *CaseService) List(ctx context.Context, actor *domain.User, filter CaseListFilter) ([]CaseView, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := repository.CaseFilter{
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Categories: filter.Categories,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if actor.Role == domain.RoleRequester {
		repoFilter.CreatedBy = &actor.ID
	}

	cases, err := s.cases.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	views := make([]CaseView, 0, len(cases))
	for i := range cases {
		views = append(views, CaseView{Case: cases[i], SLA: s.classify(&cases[i])})
	}
	return views, nil
}

// Update edits descriptive fields and priority. A priority change restarts
// the SLA deadline from the moment of the edit.
func (s *CaseService) Update(ctx context.Context, actor *domain.User, caseID string, input CaseUpdateInput) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
	}
	if input.Category != nil && !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}

	var (
		updated         *domain.Case
		oldPriority     domain.CasePriority
		priorityChanged bool
	)
	err := s.retrier.run(ctx, "update", caseID, func() error {
		return s.uow.Within(ctx, func(store repository.Store) error {
			c, err := loadVisibleCase(ctx, store.Cases(), actor, caseID)
			if err != nil {
				return err
			}
			if c.Status == domain.CaseStatusClosed {
				return apperrors.NewPolicyViolation("CASE_CLOSED", "closed cases cannot be edited", map[string]any{"case_id": c.ID})
			}
			if !canEdit(actor, c) {
				return apperrors.NewForbidden("only the creator, a manager or an admin may edit this case")
			}

			now := s.clock.Now().UTC()
			oldPriority = c.Priority
			priorityChanged = input.Priority != nil && *input.Priority != c.Priority
			if priorityChanged && !isManagerial(actor.Role) {
				return apperrors.NewForbidden("only a manager or an admin may change priority")
			}

			fields := applyFieldChanges(c, input)
			if !priorityChanged && len(fields) == 0 {
				updated = c
				return nil
			}

			if priorityChanged {
				c.Priority = *input.Priority
				c.SLADueAt = lifecycle.DueAt(c.Priority, now)
			}
			c.UpdatedAt = now
			if err := store.Cases().Update(ctx, c, c.Status); err != nil {
				return err
			}

			if priorityChanged {
				if err := store.Audit().Append(ctx, &domain.AuditEntry{
					CaseID:      c.ID,
					Action:      domain.AuditActionPriorityChanged,
					PerformedBy: actor.ID,
					Details: map[string]any{
						"old_priority": oldPriority,
						"new_priority": c.Priority,
						"sla_due_at":   c.SLADueAt,
					},
					CreatedAt: now,
				}); err != nil {
					return err
				}
			}
			if len(fields) > 0 {
				if err := store.Audit().Append(ctx, &domain.AuditEntry{
					CaseID:      c.ID,
					Action:      domain.AuditActionCaseUpdated,
					PerformedBy: actor.ID,
					Details:     map[string]any{"fields": fields},
					CreatedAt:   now,
				}); err != nil {
					return err
				}
			}
			updated = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if priorityChanged {
		s.logger.Info("case priority changed",
			zap.String("case_id", updated.ID),
			zap.String("old_priority", string(oldPriority)),
			zap.String("new_priority", string(updated.Priority)),
			zap.Time("sla_due_at", updated.SLADueAt),
		)
		s.events.publish(ctx, actor, updated, events.EventCasePriorityChanged, events.CasePriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: updated.Priority,
			SLADueAt:    updated.SLADueAt,
		})
	}
	return updated, nil
}

// Transition moves a case to another status when the transition policy and
// the target's requirements both allow it.
func (s *CaseService) Transition(ctx context.Context, actor *domain.User, caseID string, input TransitionInput) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	var (
		moved *domain.Case
		from  domain.CaseStatus
	)
	err := s.retrier.run(ctx, "transition", caseID, func() error {
		return s.uow.Within(ctx, func(store repository.Store) error {
			c, err := loadVisibleCase(ctx, store.Cases(), actor, caseID)
			if err != nil {
				return err
			}
			from = c.Status

			decision := lifecycle.CanTransition(from, input.To, actor.Role)
			if !decision.Allowed {
				s.metrics.RecordTransition(string(from), string(input.To), observability.OutcomeDenied)
				s.logger.Info("transition denied",
					zap.String("case_id", c.ID),
					zap.String("from", string(from)),
					zap.String("to", string(input.To)),
					zap.String("role", string(actor.Role)),
					zap.String("reason", string(decision.Reason)),
				)
				return policyError(decision, from, input.To)
			}

			if unmet := lifecycle.ValidateTransitionRequirements(c, input.To); len(unmet) > 0 {
				s.metrics.RecordTransition(string(from), string(input.To), observability.OutcomeRequirement)
				s.logger.Info("transition requirements unmet",
					zap.String("case_id", c.ID),
					zap.String("to", string(input.To)),
					zap.Strings("requirements", unmet),
				)
				return apperrors.NewRequirementUnmet(unmet)
			}

			now := s.clock.Now().UTC()
			c.Status = input.To
			c.UpdatedAt = now
			if err := store.Cases().Update(ctx, c, from); err != nil {
				return err
			}

			details := map[string]any{"reason": domain.TransitionReasonManual}
			if comment := strings.TrimSpace(input.Comment); comment != "" {
				details["comment"] = comment
			}
			prev, next := from, c.Status
			if err := store.Audit().Append(ctx, &domain.AuditEntry{
				CaseID:         c.ID,
				Action:         domain.AuditActionStatusChanged,
				PreviousStatus: &prev,
				NewStatus:      &next,
				PerformedBy:    actor.ID,
				Details:        details,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
			moved = c
			return nil
		})
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodePolicyViolation) && !apperrors.HasCode(err, apperrors.CodeRequirementUnmet) {
			s.metrics.RecordTransition(string(from), string(input.To), observability.OutcomeFailed)
		}
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(moved.Status), observability.OutcomeCommitted)
	s.logger.Info("case transitioned",
		zap.String("case_id", moved.ID),
		zap.String("from", string(from)),
		zap.String("to", string(moved.Status)),
		zap.String("performed_by", actor.ID),
	)
	s.events.publish(ctx, actor, moved, events.EventCaseStatusChanged, events.CaseStatusChangedPayload{
		OldStatus: from,
		NewStatus: moved.Status,
		Reason:    domain.TransitionReasonManual,
		Comment:   strings.TrimSpace(input.Comment),
	})
	return moved, nil
}

// AvailableTransitions lists the moves actor may make from the case's current status.
func (s *CaseService) AvailableTransitions(ctx context.Context, actor *domain.User, caseID string) (*domain.Case, []lifecycle.Edge, error) {
	c, err := loadVisibleCase(ctx, s.cases, actor, caseID)
	if err != nil {
		return nil, nil, err
	}
	return c, lifecycle.AvailableTransitions(c.Status, actor.Role), nil
}

func (s *CaseService) classify(c *domain.Case) lifecycle.SLAState {
	return lifecycle.Classify(s.clock.Now(), c.SLADueAt, c.Priority, c.Status)
}

// applyFieldChanges copies non-priority edits onto c and returns the names of
// the fields that actually changed.
func applyFieldChanges(c *domain.Case, input CaseUpdateInput) []string {
	fields := []string{}
	if input.Title != nil {
		if title := strings.TrimSpace(*input.Title); title != c.Title {
			c.Title = title
			fields = append(fields, "title")
		}
	}
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != c.Description {
			c.Description = desc
			fields = append(fields, "description")
		}
	}
	if input.Category != nil && *input.Category != c.Category {
		c.Category = *input.Category
		fields = append(fields, "category")
	}
	return fields
}

func policyError(decision lifecycle.Decision, from, to domain.CaseStatus) error {
	details := map[string]any{
		"from": from,
		"to":   to,
	}
	if len(decision.ValidTargets) > 0 {
		details["valid_targets"] = decision.ValidTargets
	}
	if len(decision.RequiredRoles) > 0 {
		details["required_roles"] = decision.RequiredRoles
	}
	return apperrors.NewPolicyViolation(string(decision.Reason), decision.Message, details)
}

// loadVisibleCase reads a case and hides it from requesters who did not open
// it.
func loadVisibleCase(ctx context.Context, cases repository.CaseRepository, actor *domain.User, caseID string) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	c, err := cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, err
	}
	if !canView(actor, c) {
		return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
	}
	return c, nil
}

func canView(actor *domain.User, c *domain.Case) bool {
	return actor.Role != domain.RoleRequester || c.CreatedBy == actor.ID
}

func canEdit(actor *domain.User, c *domain.Case) bool {
	return isManagerial(actor.Role) || c.CreatedBy == actor.ID
}

func isManagerial(role domain.Role) bool {
	return role == domain.RoleManager || role == domain.RoleAdmin
}

func generateCaseCode() string {
	return "CASE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
