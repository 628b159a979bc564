// Package memory provides in-process repositories. It backs the service when
// no database is configured and serves as the store in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository"
)

// Store keeps cases, users and audit entries in maps guarded by one lock.
// Units of work hold the write lock for their whole duration and stage their
// writes, so a failed unit leaves nothing behind.
type Store struct {
	mu    sync.RWMutex
	cases map[string]domain.Case
	users map[string]domain.User
	audit []domain.AuditEntry
	seq   int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		cases: make(map[string]domain.Case),
		users: make(map[string]domain.User),
	}
}

// Cases returns a repository that operates outside any unit of work.
func (s *Store) Cases() repository.CaseRepository {
	return &caseRepo{store: s}
}

// Users returns the user repository.
func (s *Store) Users() repository.UserRepository {
	return &userRepo{store: s}
}

// Audit returns a ledger that operates outside any unit of work.
func (s *Store) Audit() repository.AuditLedger {
	return &auditLedger{store: s}
}

// Within implements repository.UnitOfWork.
func (s *Store) Within(ctx context.Context, fn func(repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txStore{
		parent: s,
		staged: make(map[string]domain.Case),
		seq:    s.seq,
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id, c := range tx.staged {
		s.cases[id] = c
	}
	s.audit = append(s.audit, tx.appended...)
	s.seq = tx.seq
	return nil
}

// view is the read/write surface shared by the plain repositories and the
// transactional ones. Callers must hold the store lock.
type view interface {
	getCase(id string) (domain.Case, bool)
	putCase(c domain.Case)
	allCases() []domain.Case
	appendEntry(e domain.AuditEntry) int64
	entries() []domain.AuditEntry
}

func (s *Store) getCase(id string) (domain.Case, bool) {
	c, ok := s.cases[id]
	return c, ok
}

func (s *Store) putCase(c domain.Case) {
	s.cases[c.ID] = c
}

func (s *Store) allCases() []domain.Case {
	result := make([]domain.Case, 0, len(s.cases))
	for _, c := range s.cases {
		result = append(result, c)
	}
	return result
}

func (s *Store) appendEntry(e domain.AuditEntry) int64 {
	s.seq++
	e.Seq = s.seq
	s.audit = append(s.audit, e)
	return e.Seq
}

func (s *Store) entries() []domain.AuditEntry {
	return s.audit
}

type txStore struct {
	parent   *Store
	staged   map[string]domain.Case
	appended []domain.AuditEntry
	seq      int64
}

func (t *txStore) Cases() repository.CaseRepository {
	return &caseRepo{view: t}
}

func (t *txStore) Audit() repository.AuditLedger {
	return &auditLedger{view: t}
}

func (t *txStore) getCase(id string) (domain.Case, bool) {
	if c, ok := t.staged[id]; ok {
		return c, true
	}
	return t.parent.getCase(id)
}

func (t *txStore) putCase(c domain.Case) {
	t.staged[c.ID] = c
}

func (t *txStore) allCases() []domain.Case {
	result := make([]domain.Case, 0, len(t.parent.cases)+len(t.staged))
	for id, c := range t.parent.cases {
		if _, ok := t.staged[id]; !ok {
			result = append(result, c)
		}
	}
	for _, c := range t.staged {
		result = append(result, c)
	}
	return result
}

func (t *txStore) appendEntry(e domain.AuditEntry) int64 {
	t.seq++
	e.Seq = t.seq
	t.appended = append(t.appended, e)
	return e.Seq
}

func (t *txStore) entries() []domain.AuditEntry {
	return append(append([]domain.AuditEntry(nil), t.parent.audit...), t.appended...)
}

// caseRepo runs against the store directly (locking per call) or against a
// transaction view (lock already held).
type caseRepo struct {
	store *Store
	view  view
}

func (r *caseRepo) read(fn func(v view)) {
	if r.view != nil {
		fn(r.view)
		return
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	fn(r.store)
}

func (r *caseRepo) write(fn func(v view) error) error {
	if r.view != nil {
		return fn(r.view)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store)
}

func (r *caseRepo) Create(ctx context.Context, c *domain.Case) error {
	return r.write(func(v view) error {
		if _, exists := v.getCase(c.ID); exists {
			return repository.ErrDuplicate
		}
		for _, existing := range v.allCases() {
			if existing.Code == c.Code {
				return repository.ErrDuplicate
			}
		}
		v.putCase(*c.Clone())
		return nil
	})
}

func (r *caseRepo) Update(ctx context.Context, c *domain.Case, expected domain.CaseStatus) error {
	return r.write(func(v view) error {
		current, ok := v.getCase(c.ID)
		if !ok || current.Status != expected || current.Version != c.Version {
			return repository.ErrConflict
		}
		next := c.Clone()
		next.Version++
		next.CreatedAt = current.CreatedAt
		next.CreatedBy = current.CreatedBy
		next.Code = current.Code
		v.putCase(*next)
		c.Version = next.Version
		return nil
	})
}

func (r *caseRepo) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	var (
		found domain.Case
		ok    bool
	)
	r.read(func(v view) {
		found, ok = v.getCase(id)
	})
	if !ok {
		return nil, repository.ErrNotFound
	}
	return found.Clone(), nil
}

func (r *caseRepo) GetByCode(ctx context.Context, code string) (*domain.Case, error) {
	var found *domain.Case
	r.read(func(v view) {
		for _, c := range v.allCases() {
			if c.Code == code {
				found = c.Clone()
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *caseRepo) ListWithFilter(ctx context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	var all []domain.Case
	r.read(func(v view) {
		all = v.allCases()
	})

	matched := make([]domain.Case, 0, len(all))
	for _, c := range all {
		if matchesFilter(c, filter) {
			matched = append(matched, *c.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Case{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *caseRepo) ListActive(ctx context.Context) ([]domain.Case, error) {
	var all []domain.Case
	r.read(func(v view) {
		all = v.allCases()
	})

	result := make([]domain.Case, 0, len(all))
	for _, c := range all {
		if c.Status != domain.CaseStatusClosed {
			result = append(result, *c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SLADueAt.Before(result[j].SLADueAt)
	})
	return result, nil
}

func matchesFilter(c domain.Case, filter repository.CaseFilter) bool {
	if filter.CreatedBy != nil && c.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssigneeID != nil && (c.AssigneeID == nil || *c.AssigneeID != *filter.AssigneeID) {
		return false
	}
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, c.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !contains(filter.Priorities, c.Priority) {
		return false
	}
	if len(filter.Categories) > 0 && !contains(filter.Categories, c.Category) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(c.Title), term) &&
			!strings.Contains(strings.ToLower(c.Description), term) &&
			!strings.Contains(strings.ToLower(c.Code), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type auditLedger struct {
	store *Store
	view  view
}

func (l *auditLedger) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	stored := *entry
	stored.Details = cloneDetails(entry.Details)

	if l.view != nil {
		entry.Seq = l.view.appendEntry(stored)
		return nil
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	entry.Seq = l.store.appendEntry(stored)
	return nil
}

func (l *auditLedger) Trail(ctx context.Context, caseID string) ([]domain.AuditTrailEntry, error) {
	var (
		entries []domain.AuditEntry
		users   map[string]domain.User
	)
	if l.view != nil {
		entries = l.view.entries()
		if tx, ok := l.view.(*txStore); ok {
			users = tx.parent.users
		}
	} else {
		l.store.mu.RLock()
		defer l.store.mu.RUnlock()
		entries = l.store.entries()
		users = l.store.users
	}

	result := []domain.AuditTrailEntry{}
	for _, e := range entries {
		if e.CaseID != caseID {
			continue
		}
		e.Details = cloneDetails(e.Details)
		trail := domain.AuditTrailEntry{AuditEntry: e}
		if u, ok := users[e.PerformedBy]; ok {
			trail.PerformerName = u.Name
			trail.PerformerEmail = u.Email
		}
		result = append(result, trail)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Seq > result[j].Seq
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func cloneDetails(details map[string]any) map[string]any {
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}

type userRepo struct {
	store *Store
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, existing := range r.store.users {
		if existing.ID == user.ID || strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	r.store.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, user := range r.store.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}
