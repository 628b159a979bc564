package service

import (
	"context"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/lifecycle"
)

// DashboardItem is one active case with its SLA label in dashboard vocabulary.
type DashboardItem struct {
	Case     domain.Case
	SLA      lifecycle.SLAState
	SLALabel string
}

// SLADashboard summarizes every case that is not closed.
type SLADashboard struct {
	Total    int
	ByStatus map[domain.CaseStatus]int
	// BySLA is keyed by the dashboard label, so past-due cases count as "overdue".
	BySLA map[string]int
	Items []DashboardItem
}

// SLADashboard classifies active cases, soonest deadline first.
func (s *CaseService) SLADashboard(ctx context.Context) (*SLADashboard, error) {
	active, err := s.cases.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	board := &SLADashboard{
		Total:    len(active),
		ByStatus: make(map[domain.CaseStatus]int),
		BySLA: map[string]int{
			lifecycle.SLAOnTrack.Label(lifecycle.ConsumerDashboard): 0,
			lifecycle.SLAAtRisk.Label(lifecycle.ConsumerDashboard):  0,
			lifecycle.SLAPastDue.Label(lifecycle.ConsumerDashboard): 0,
		},
		Items: make([]DashboardItem, 0, len(active)),
	}
	for _, c := range active {
		state := lifecycle.Classify(now, c.SLADueAt, c.Priority, c.Status)
		label := state.Label(lifecycle.ConsumerDashboard)
		board.ByStatus[c.Status]++
		board.BySLA[label]++
		board.Items = append(board.Items, DashboardItem{Case: c, SLA: state, SLALabel: label})
	}
	return board, nil
}
