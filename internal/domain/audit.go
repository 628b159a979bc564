package domain

import "time"

// AuditAction captures what kind of lifecycle event an entry records.
type AuditAction string

const (
	AuditActionCaseCreated     AuditAction = "CASE_CREATED"
	AuditActionCaseUpdated     AuditAction = "CASE_UPDATED"
	AuditActionStatusChanged   AuditAction = "STATUS_CHANGED"
	AuditActionAssigned        AuditAction = "ASSIGNED"
	AuditActionPriorityChanged AuditAction = "PRIORITY_CHANGED"
)

// Reasons stored under the "reason" detail key of STATUS_CHANGED entries.
const (
	TransitionReasonManual         = "manual"
	TransitionReasonAutoAssignment = "auto_assignment"
)

// AuditEntry is an immutable record of one lifecycle event.
type AuditEntry struct {
	ID               string
	Seq              int64
	CaseID           string
	Action           AuditAction
	PreviousStatus   *CaseStatus
	NewStatus        *CaseStatus
	PreviousAssignee *string
	NewAssignee      *string
	PerformedBy      string
	Details          map[string]any
	CreatedAt        time.Time
}

// AuditTrailEntry is an AuditEntry enriched with the performer's display identity.
type AuditTrailEntry struct {
	AuditEntry
	PerformerName  string
	PerformerEmail string
}
