package lifecycle

import (
	"fmt"

	"github.com/spec-kit/case-service/internal/domain"
)

// ValidateTransitionRequirements checks data-dependent preconditions that the
// transition graph cannot express. It runs after CanTransition has allowed the
// move and returns one message per unmet requirement.
func ValidateTransitionRequirements(c *domain.Case, target domain.CaseStatus) []string {
	var unmet []string
	switch target {
	case domain.CaseStatusAssigned:
		if c.AssigneeID == nil || *c.AssigneeID == "" {
			unmet = append(unmet, "case must have an assignee before it can be ASSIGNED")
		}
	case domain.CaseStatusClosed:
		// Independent of the graph: closing is only ever legal out of review.
		if c.Status != domain.CaseStatusUnderReview {
			unmet = append(unmet, fmt.Sprintf("case must be UNDER_REVIEW to be closed, current status is %s", c.Status))
		}
	}
	return unmet
}
