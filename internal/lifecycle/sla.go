package lifecycle

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

const (
	defaultSLA        = 48 * time.Hour
	defaultRiskWindow = 6 * time.Hour
)

var slaDurations = map[domain.CasePriority]time.Duration{
	domain.CasePriorityLow:      72 * time.Hour,
	domain.CasePriorityMedium:   48 * time.Hour,
	domain.CasePriorityHigh:     24 * time.Hour,
	domain.CasePriorityCritical: 4 * time.Hour,
}

var riskWindows = map[domain.CasePriority]time.Duration{
	domain.CasePriorityCritical: 1 * time.Hour,
	domain.CasePriorityHigh:     2 * time.Hour,
	domain.CasePriorityMedium:   6 * time.Hour,
	domain.CasePriorityLow:      12 * time.Hour,
}

// SLADuration is the resolution budget granted to a priority.
func SLADuration(priority domain.CasePriority) time.Duration {
	if d, ok := slaDurations[priority]; ok {
		return d
	}
	return defaultSLA
}

// RiskWindow is how close to the deadline a case of this priority becomes at risk.
func RiskWindow(priority domain.CasePriority) time.Duration {
	if d, ok := riskWindows[priority]; ok {
		return d
	}
	return defaultRiskWindow
}

// DueAt computes the SLA deadline for a priority starting at from. Callers pass
// the creation time for new cases and the edit time when priority changes.
func DueAt(priority domain.CasePriority, from time.Time) time.Time {
	return from.Add(SLADuration(priority))
}

// SLAState classifies a case's urgency relative to its deadline.
type SLAState string

const (
	SLAOnTrack SLAState = "on_track"
	SLAAtRisk  SLAState = "at_risk"
	SLAPastDue SLAState = "past_due"
	SLAClosed  SLAState = "closed"
)

// Consumer selects the label vocabulary a read path renders SLA states with.
type Consumer int

const (
	// ConsumerCaseView is used by case list and detail responses.
	ConsumerCaseView Consumer = iota
	// ConsumerDashboard is used by the SLA dashboard and reports.
	ConsumerDashboard
)

// Label renders the state for a consumer. The past-due condition is
// "breached" on case views and "overdue" on dashboards.
func (s SLAState) Label(consumer Consumer) string {
	if s != SLAPastDue {
		return string(s)
	}
	if consumer == ConsumerDashboard {
		return "overdue"
	}
	return "breached"
}

// Classify places a case on the SLA scale at instant now.
func Classify(now, dueAt time.Time, priority domain.CasePriority, status domain.CaseStatus) SLAState {
	if status == domain.CaseStatusClosed {
		return SLAClosed
	}
	if !now.Before(dueAt) {
		return SLAPastDue
	}
	if dueAt.Sub(now) < RiskWindow(priority) {
		return SLAAtRisk
	}
	return SLAOnTrack
}
