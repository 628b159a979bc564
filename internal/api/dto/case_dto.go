package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/lifecycle"
	"github.com/spec-kit/case-service/internal/service"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=10000"`
	Category    domain.CaseCategory `json:"category" validate:"omitempty,case_category"`
	Priority    domain.CasePriority `json:"priority" validate:"omitempty,case_priority"`
}

// UpdateCaseRequest payload; omitted fields are left unchanged.
type UpdateCaseRequest struct {
	Title       *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description" validate:"omitempty,max=10000"`
	Category    *domain.CaseCategory `json:"category" validate:"omitempty,case_category"`
	Priority    *domain.CasePriority `json:"priority" validate:"omitempty,case_priority"`
}

// TransitionRequest payload. The target is checked by the transition policy,
// not here, so an unknown status is reported with the valid destinations.
type TransitionRequest struct {
	To      domain.CaseStatus `json:"to" validate:"required"`
	Comment string            `json:"comment" validate:"max=2000"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// CaseResponse represents a case on list and detail endpoints.
type CaseResponse struct {
	ID          string              `json:"id"`
	Code        string              `json:"code"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    domain.CaseCategory `json:"category"`
	Priority    domain.CasePriority `json:"priority"`
	Status      domain.CaseStatus   `json:"status"`
	AssigneeID  *string             `json:"assignee_id"`
	CreatedBy   string              `json:"created_by"`
	SLADueAt    time.Time           `json:"sla_due_at"`
	SLAStatus   string              `json:"sla_status,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Version     int                 `json:"version"`
}

// TransitionOption is one move available to the caller.
type TransitionOption struct {
	To    domain.CaseStatus `json:"to"`
	Roles []domain.Role     `json:"roles"`
}

// AvailableTransitionsResponse lists the caller's moves from the current status.
type AvailableTransitionsResponse struct {
	CaseID      string             `json:"case_id"`
	Status      domain.CaseStatus  `json:"status"`
	Transitions []TransitionOption `json:"transitions"`
}

// AuditEntryResponse is one line of a case's history.
type AuditEntryResponse struct {
	ID                 string             `json:"id"`
	Seq                int64              `json:"seq"`
	Action             domain.AuditAction `json:"action"`
	PreviousStatus     *domain.CaseStatus `json:"previous_status"`
	NewStatus          *domain.CaseStatus `json:"new_status"`
	PreviousAssigneeID *string            `json:"previous_assignee_id"`
	NewAssigneeID      *string            `json:"new_assignee_id"`
	PerformedBy        PerformerResponse  `json:"performed_by"`
	Details            map[string]any     `json:"details"`
	CreatedAt          time.Time          `json:"created_at"`
}

// PerformerResponse identifies who made a change.
type PerformerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SLADashboardResponse summarizes active cases.
type SLADashboardResponse struct {
	Total    int                       `json:"total"`
	ByStatus map[domain.CaseStatus]int `json:"by_status"`
	BySLA    map[string]int            `json:"by_sla"`
	Cases    []DashboardCaseResponse   `json:"cases"`
}

// DashboardCaseResponse is a compact case row on the dashboard.
type DashboardCaseResponse struct {
	ID         string              `json:"id"`
	Code       string              `json:"code"`
	Title      string              `json:"title"`
	Priority   domain.CasePriority `json:"priority"`
	Status     domain.CaseStatus   `json:"status"`
	AssigneeID *string             `json:"assignee_id"`
	SLADueAt   time.Time           `json:"sla_due_at"`
	SLAStatus  string              `json:"sla_status"`
}

// NewCaseResponse renders a case without SLA classification.
func NewCaseResponse(c *domain.Case) CaseResponse {
	return CaseResponse{
		ID:          c.ID,
		Code:        c.Code,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Priority:    c.Priority,
		Status:      c.Status,
		AssigneeID:  c.AssigneeID,
		CreatedBy:   c.CreatedBy,
		SLADueAt:    c.SLADueAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Version:     c.Version,
	}
}

// NewCaseViewResponse renders a case with its SLA label in case-view vocabulary.
func NewCaseViewResponse(view service.CaseView) CaseResponse {
	resp := NewCaseResponse(&view.Case)
	resp.SLAStatus = view.SLA.Label(lifecycle.ConsumerCaseView)
	return resp
}

// NewAvailableTransitionsResponse renders the caller's options.
func NewAvailableTransitionsResponse(c *domain.Case, edges []lifecycle.Edge) AvailableTransitionsResponse {
	options := make([]TransitionOption, 0, len(edges))
	for _, e := range edges {
		options = append(options, TransitionOption{To: e.To, Roles: e.Roles})
	}
	return AvailableTransitionsResponse{CaseID: c.ID, Status: c.Status, Transitions: options}
}

// NewAuditEntryResponse renders a trail entry.
func NewAuditEntryResponse(e domain.AuditTrailEntry) AuditEntryResponse {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return AuditEntryResponse{
		ID:                 e.ID,
		Seq:                e.Seq,
		Action:             e.Action,
		PreviousStatus:     e.PreviousStatus,
		NewStatus:          e.NewStatus,
		PreviousAssigneeID: e.PreviousAssignee,
		NewAssigneeID:      e.NewAssignee,
		PerformedBy:        PerformerResponse{ID: e.PerformedBy, Name: e.PerformerName, Email: e.PerformerEmail},
		Details:            details,
		CreatedAt:          e.CreatedAt,
	}
}

// NewSLADashboardResponse renders the dashboard in its own SLA vocabulary.
func NewSLADashboardResponse(board *service.SLADashboard) SLADashboardResponse {
	rows := make([]DashboardCaseResponse, 0, len(board.Items))
	for _, item := range board.Items {
		rows = append(rows, DashboardCaseResponse{
			ID:         item.Case.ID,
			Code:       item.Case.Code,
			Title:      item.Case.Title,
			Priority:   item.Case.Priority,
			Status:     item.Case.Status,
			AssigneeID: item.Case.AssigneeID,
			SLADueAt:   item.Case.SLADueAt,
			SLAStatus:  item.SLALabel,
		})
	}
	return SLADashboardResponse{
		Total:    board.Total,
		ByStatus: board.ByStatus,
		BySLA:    board.BySLA,
		Cases:    rows,
	}
}
