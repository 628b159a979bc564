package domain

import "time"

// CaseStatus enumerates lifecycle states for cases.
type CaseStatus string

const (
	CaseStatusCreated     CaseStatus = "CREATED"
	CaseStatusAssigned    CaseStatus = "ASSIGNED"
	CaseStatusInProgress  CaseStatus = "IN_PROGRESS"
	CaseStatusUnderReview CaseStatus = "UNDER_REVIEW"
	CaseStatusClosed      CaseStatus = "CLOSED"
)

// CaseStatuses lists every status in lifecycle order.
var CaseStatuses = []CaseStatus{
	CaseStatusCreated,
	CaseStatusAssigned,
	CaseStatusInProgress,
	CaseStatusUnderReview,
	CaseStatusClosed,
}

// Valid reports whether s is one of the declared statuses.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusCreated, CaseStatusAssigned, CaseStatusInProgress, CaseStatusUnderReview, CaseStatusClosed:
		return true
	}
	return false
}

// CasePriority enumerates SLA urgency.
type CasePriority string

const (
	CasePriorityLow      CasePriority = "LOW"
	CasePriorityMedium   CasePriority = "MEDIUM"
	CasePriorityHigh     CasePriority = "HIGH"
	CasePriorityCritical CasePriority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p CasePriority) Valid() bool {
	switch p {
	case CasePriorityLow, CasePriorityMedium, CasePriorityHigh, CasePriorityCritical:
		return true
	}
	return false
}

// CaseCategory classifies the kind of work a case represents.
type CaseCategory string

const (
	CaseCategoryGeneral    CaseCategory = "GENERAL"
	CaseCategoryTechnical  CaseCategory = "TECHNICAL"
	CaseCategoryBilling    CaseCategory = "BILLING"
	CaseCategoryAccess     CaseCategory = "ACCESS"
	CaseCategoryCompliance CaseCategory = "COMPLIANCE"
)

// Valid reports whether c is a known category.
func (c CaseCategory) Valid() bool {
	switch c {
	case CaseCategoryGeneral, CaseCategoryTechnical, CaseCategoryBilling, CaseCategoryAccess, CaseCategoryCompliance:
		return true
	}
	return false
}

// Case is the aggregate tracked through the lifecycle.
type Case struct {
	ID          string
	Code        string
	Title       string
	Description string
	Category    CaseCategory
	Priority    CasePriority
	Status      CaseStatus
	AssigneeID  *string
	CreatedBy   string
	SLADueAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Version increments on every write and guards optimistic updates.
	Version int
}

// Clone returns a copy that shares no pointers with c.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	if c.AssigneeID != nil {
		id := *c.AssigneeID
		out.AssigneeID = &id
	}
	return &out
}
