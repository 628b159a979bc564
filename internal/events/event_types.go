package events

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseCreated         EventType = "case_created"
	EventCaseStatusChanged   EventType = "case_status_changed"
	EventCasePriorityChanged EventType = "case_priority_changed"
	EventCaseAssigned        EventType = "case_assigned"
)

// EventTypes lists every event the services publish.
var EventTypes = []EventType{
	EventCaseCreated,
	EventCaseStatusChanged,
	EventCasePriorityChanged,
	EventCaseAssigned,
}

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event is a lifecycle change published after its transaction commits.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CaseID    string    `json:"case_id"`
	CaseCode  string    `json:"case_code"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// CaseCreatedPayload payload.
type CaseCreatedPayload struct {
	Title    string              `json:"title"`
	Category domain.CaseCategory `json:"category"`
	Priority domain.CasePriority `json:"priority"`
	SLADueAt time.Time           `json:"sla_due_at"`
}

// CaseStatusChangedPayload payload.
type CaseStatusChangedPayload struct {
	OldStatus domain.CaseStatus `json:"old_status"`
	NewStatus domain.CaseStatus `json:"new_status"`
	Reason    string            `json:"reason"`
	Comment   string            `json:"comment,omitempty"`
}

// CasePriorityChangedPayload payload.
type CasePriorityChangedPayload struct {
	OldPriority domain.CasePriority `json:"old_priority"`
	NewPriority domain.CasePriority `json:"new_priority"`
	SLADueAt    time.Time           `json:"sla_due_at"`
}

// CaseAssignedPayload payload.
type CaseAssignedPayload struct {
	PreviousAssigneeID *string `json:"previous_assignee_id"`
	AssigneeID         string  `json:"assignee_id"`
}
