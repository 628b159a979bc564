package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/lifecycle"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyUnitOfWork injects write conflicts and ledger failures into an
// otherwise real unit of work.
type flakyUnitOfWork struct {
	inner     repository.UnitOfWork
	conflicts int
	failAudit bool
}

func (f *flakyUnitOfWork) Within(ctx context.Context, fn func(repository.Store) error) error {
	return f.inner.Within(ctx, func(store repository.Store) error {
		return fn(&flakyStore{Store: store, uow: f})
	})
}

type flakyStore struct {
	repository.Store
	uow *flakyUnitOfWork
}

func (s *flakyStore) Cases() repository.CaseRepository {
	return &flakyCases{CaseRepository: s.Store.Cases(), uow: s.uow}
}

func (s *flakyStore) Audit() repository.AuditLedger {
	if s.uow.failAudit {
		return failingLedger{}
	}
	return s.Store.Audit()
}

type flakyCases struct {
	repository.CaseRepository
	uow *flakyUnitOfWork
}

func (c *flakyCases) Update(ctx context.Context, cs *domain.Case, expected domain.CaseStatus) error {
	if c.uow.conflicts > 0 {
		c.uow.conflicts--
		return repository.ErrConflict
	}
	return c.CaseRepository.Update(ctx, cs, expected)
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, *domain.AuditEntry) error {
	return errors.New("ledger unavailable")
}

func (failingLedger) Trail(context.Context, string) ([]domain.AuditTrailEntry, error) {
	return nil, errors.New("ledger unavailable")
}

type harness struct {
	store      *memory.Store
	uow        *flakyUnitOfWork
	clock      *fakeClock
	metrics    *observability.Metrics
	registry   *prometheus.Registry
	published  []events.Event
	cases      *CaseService
	assignment *AssignmentService
	audit      *AuditService
	users      *UserService

	requester  *domain.User
	requester2 *domain.User
	analyst    *domain.User
	analyst2   *domain.User
	manager    *domain.User
	admin      *domain.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    memory.NewStore(),
		clock:    &fakeClock{now: t0},
		registry: prometheus.NewRegistry(),
	}
	h.uow = &flakyUnitOfWork{inner: h.store}
	h.metrics = observability.NewMetrics(h.registry)

	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.EventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			h.published = append(h.published, e)
			return nil
		})
	}

	retry := RetryConfig{Retries: 3, InitialInterval: time.Millisecond}
	h.cases = NewCaseService(CaseDependencies{
		UnitOfWork: h.uow,
		CaseRepo:   h.store.Cases(),
		Clock:      h.clock,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Retry:      retry,
	})
	h.assignment = NewAssignmentService(AssignmentDependencies{
		UnitOfWork: h.uow,
		UserRepo:   h.store.Users(),
		Clock:      h.clock,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Retry:      retry,
	})
	h.audit = NewAuditService(AuditDependencies{CaseRepo: h.store.Cases(), AuditRepo: h.store.Audit()})
	h.users = NewUserService(UserDependencies{UserRepo: h.store.Users(), BcryptCost: 4})

	h.requester = h.seedUser(t, "Rita Requester", "rita@example.com", domain.RoleRequester)
	h.requester2 = h.seedUser(t, "Rob Requester", "rob@example.com", domain.RoleRequester)
	h.analyst = h.seedUser(t, "Ana Analyst", "ana@example.com", domain.RoleAnalyst)
	h.analyst2 = h.seedUser(t, "Andy Analyst", "andy@example.com", domain.RoleAnalyst)
	h.manager = h.seedUser(t, "Mia Manager", "mia@example.com", domain.RoleManager)
	h.admin = h.seedUser(t, "Adam Admin", "adam@example.com", domain.RoleAdmin)
	return h
}

func (h *harness) seedUser(t *testing.T, name, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Name: name, Email: email, Role: role, Active: true}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return user
}

func (h *harness) createCase(t *testing.T, priority domain.CasePriority) *domain.Case {
	t.Helper()
	c, err := h.cases.Create(context.Background(), h.requester, CaseCreateInput{
		Title:    "VPN drops every hour",
		Priority: priority,
	})
	require.NoError(t, err)
	return c
}

// caseUnderReview drives a new case to UNDER_REVIEW through the public operations.
func (h *harness) caseUnderReview(t *testing.T) *domain.Case {
	t.Helper()
	ctx := context.Background()
	c := h.createCase(t, domain.CasePriorityHigh)
	_, err := h.assignment.Assign(ctx, h.manager, c.ID, h.analyst.ID)
	require.NoError(t, err)
	_, err = h.cases.Transition(ctx, h.analyst, c.ID, TransitionInput{To: domain.CaseStatusInProgress})
	require.NoError(t, err)
	c, err = h.cases.Transition(ctx, h.analyst, c.ID, TransitionInput{To: domain.CaseStatusUnderReview})
	require.NoError(t, err)
	return c
}

func (h *harness) trail(t *testing.T, caseID string) []domain.AuditTrailEntry {
	t.Helper()
	entries, err := h.audit.Trail(context.Background(), h.admin, caseID)
	require.NoError(t, err)
	return entries
}

func (h *harness) stored(t *testing.T, caseID string) *domain.Case {
	t.Helper()
	c, err := h.store.Cases().GetByID(context.Background(), caseID)
	require.NoError(t, err)
	return c
}

var counterHelp = map[string]string{
	"case_assignments_total":     "Committed assignments, split by whether they advanced the status.",
	"case_write_conflicts_total": "Optimistic write conflicts by operation.",
	"case_transitions_total":     "Status transition attempts by source, target and outcome.",
}

// assertCounter compares every series of a counter family with series.
func (h *harness) assertCounter(t *testing.T, name string, series ...string) {
	t.Helper()
	expected := fmt.Sprintf("# HELP %s %s\n# TYPE %s counter\n%s\n", name, counterHelp[name], name, strings.Join(series, "\n"))
	require.NoError(t, testutil.GatherAndCompare(h.registry, strings.NewReader(expected), name))
}

func statusPtr(s domain.CaseStatus) *domain.CaseStatus { return &s }

var _ lifecycle.Clock = (*fakeClock)(nil)
