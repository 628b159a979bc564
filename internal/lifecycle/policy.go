// Package lifecycle holds the case state machine, its requirement guards and
// the SLA clock. Everything here is pure and safe for concurrent use: the
// transition graph and SLA tables are built once and never mutated.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/spec-kit/case-service/internal/domain"
)

// Edge is a declared transition together with the roles allowed to traverse it.
type Edge struct {
	From  domain.CaseStatus
	To    domain.CaseStatus
	Roles []domain.Role
}

// Permits reports whether role may traverse the edge.
func (e Edge) Permits(role domain.Role) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (e Edge) clone() Edge {
	e.Roles = append([]domain.Role(nil), e.Roles...)
	return e
}

var declaredEdges = []Edge{
	{From: domain.CaseStatusCreated, To: domain.CaseStatusAssigned, Roles: []domain.Role{domain.RoleManager, domain.RoleAdmin}},
	{From: domain.CaseStatusAssigned, To: domain.CaseStatusInProgress, Roles: []domain.Role{domain.RoleAnalyst}},
	{From: domain.CaseStatusInProgress, To: domain.CaseStatusUnderReview, Roles: []domain.Role{domain.RoleAnalyst}},
	{From: domain.CaseStatusUnderReview, To: domain.CaseStatusClosed, Roles: []domain.Role{domain.RoleManager, domain.RoleAdmin}},
	// rework
	{From: domain.CaseStatusUnderReview, To: domain.CaseStatusInProgress, Roles: []domain.Role{domain.RoleManager, domain.RoleAdmin}},
}

type graph struct {
	edges    []Edge
	outgoing map[domain.CaseStatus][]Edge
}

var transitions = mustBuildGraph(declaredEdges)

func mustBuildGraph(edges []Edge) *graph {
	g, err := buildGraph(edges)
	if err != nil {
		panic(fmt.Sprintf("lifecycle: invalid transition table: %v", err))
	}
	return g
}

// buildGraph indexes edges by source and checks the table against the status
// enumeration: unknown endpoints, duplicates, dead ends and unreachable states
// are all rejected.
func buildGraph(edges []Edge) (*graph, error) {
	g := &graph{outgoing: make(map[domain.CaseStatus][]Edge)}
	incoming := make(map[domain.CaseStatus]int)
	seen := make(map[[2]domain.CaseStatus]struct{})

	for _, e := range edges {
		if !e.From.Valid() || !e.To.Valid() {
			return nil, fmt.Errorf("edge %s -> %s uses an unknown status", e.From, e.To)
		}
		if e.From == domain.CaseStatusClosed {
			return nil, fmt.Errorf("edge %s -> %s leaves the terminal status", e.From, e.To)
		}
		if len(e.Roles) == 0 {
			return nil, fmt.Errorf("edge %s -> %s has no authorized roles", e.From, e.To)
		}
		for _, r := range e.Roles {
			if !r.Valid() {
				return nil, fmt.Errorf("edge %s -> %s authorizes unknown role %q", e.From, e.To, r)
			}
		}
		key := [2]domain.CaseStatus{e.From, e.To}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("edge %s -> %s declared twice", e.From, e.To)
		}
		seen[key] = struct{}{}

		e = e.clone()
		g.edges = append(g.edges, e)
		g.outgoing[e.From] = append(g.outgoing[e.From], e)
		incoming[e.To]++
	}

	for _, s := range domain.CaseStatuses {
		if s != domain.CaseStatusClosed && len(g.outgoing[s]) == 0 {
			return nil, fmt.Errorf("status %s has no outgoing edges", s)
		}
		if s != domain.CaseStatusCreated && incoming[s] == 0 {
			return nil, fmt.Errorf("status %s is unreachable", s)
		}
	}
	return g, nil
}

// DenialReason discriminates why a transition was refused.
type DenialReason string

const (
	// ReasonUnknownSource means the source status has no outgoing edges at all.
	ReasonUnknownSource DenialReason = "UNKNOWN_SOURCE"
	// ReasonInvalidEdge means the requested destination is not reachable from the source.
	ReasonInvalidEdge DenialReason = "INVALID_EDGE"
	// ReasonUnauthorizedRole means the edge exists but the role may not traverse it.
	ReasonUnauthorizedRole DenialReason = "UNAUTHORIZED_ROLE"
)

// Decision is the outcome of CanTransition.
type Decision struct {
	Allowed bool
	Reason  DenialReason
	Message string
	// ValidTargets is set for ReasonInvalidEdge.
	ValidTargets []domain.CaseStatus
	// RequiredRoles is set for ReasonUnauthorizedRole.
	RequiredRoles []domain.Role
}

// CanTransition decides whether role may move a case from one status to another.
func CanTransition(from, to domain.CaseStatus, role domain.Role) Decision {
	outgoing := transitions.outgoing[from]
	if len(outgoing) == 0 {
		return Decision{
			Reason:  ReasonUnknownSource,
			Message: fmt.Sprintf("no transitions are allowed from %s", from),
		}
	}

	for _, e := range outgoing {
		if e.To != to {
			continue
		}
		if e.Permits(role) {
			return Decision{Allowed: true}
		}
		required := append([]domain.Role(nil), e.Roles...)
		return Decision{
			Reason:        ReasonUnauthorizedRole,
			Message:       fmt.Sprintf("role %s cannot move a case from %s to %s; requires one of: %s", role, from, to, joinRoles(required)),
			RequiredRoles: required,
		}
	}

	targets := make([]domain.CaseStatus, 0, len(outgoing))
	for _, e := range outgoing {
		targets = append(targets, e.To)
	}
	return Decision{
		Reason:       ReasonInvalidEdge,
		Message:      fmt.Sprintf("cannot move a case from %s to %s; valid destinations: %s", from, to, joinStatuses(targets)),
		ValidTargets: targets,
	}
}

// AvailableTransitions returns the edges from the given status that role may
// traverse, in declaration order.
func AvailableTransitions(from domain.CaseStatus, role domain.Role) []Edge {
	result := []Edge{}
	for _, e := range transitions.outgoing[from] {
		if e.Permits(role) {
			result = append(result, e.clone())
		}
	}
	return result
}

// Edges returns a copy of the full declared transition table.
func Edges() []Edge {
	result := make([]Edge, 0, len(transitions.edges))
	for _, e := range transitions.edges {
		result = append(result, e.clone())
	}
	return result
}

// CanAssign reports whether the assignment workflow may move a case out of status.
func CanAssign(status domain.CaseStatus) bool {
	return status == domain.CaseStatusCreated
}

func joinRoles(roles []domain.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func joinStatuses(statuses []domain.CaseStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
