package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/case-service/internal/domain"
)

// CaseFilter captures list parameters.
type CaseFilter struct {
	CreatedBy  *string
	AssigneeID *string
	Statuses   []domain.CaseStatus
	Priorities []domain.CasePriority
	Categories []domain.CaseCategory
	SearchTerm *string
	Limit      int
	Offset     int
}

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	// Update writes c only if the stored row still has status expected and the
	// version c was read at. On success c.Version is advanced; otherwise
	// ErrConflict is returned and nothing is written.
	Update(ctx context.Context, c *domain.Case, expected domain.CaseStatus) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	GetByCode(ctx context.Context, code string) (*domain.Case, error)
	ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
	// ListActive returns every case that is not closed, soonest deadline first.
	ListActive(ctx context.Context) ([]domain.Case, error)
}

const caseColumns = `id, code, title, description, category, priority, status, assignee_id,
               created_by, sla_due_at, created_at, updated_at, version`

type caseRepository struct {
	db DBTX
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(db DBTX) CaseRepository {
	return &caseRepository{db: db}
}

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (id, code, title, description, category, priority, status, assignee_id,
                           created_by, sla_due_at, created_at, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.Code,
		c.Title,
		c.Description,
		c.Category,
		c.Priority,
		c.Status,
		c.AssigneeID,
		c.CreatedBy,
		c.SLADueAt,
		c.CreatedAt,
		c.UpdatedAt,
		c.Version,
	)
	return mapWriteErr(err)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case, expected domain.CaseStatus) error {
	const query = `
        UPDATE cases SET title=$1, description=$2, category=$3, priority=$4, status=$5, assignee_id=$6,
            sla_due_at=$7, updated_at=$8, version=version+1
        WHERE id=$9 AND status=$10 AND version=$11`
	cmd, err := r.db.Exec(ctx, query,
		c.Title,
		c.Description,
		c.Category,
		c.Priority,
		c.Status,
		c.AssigneeID,
		c.SLADueAt,
		c.UpdatedAt,
		c.ID,
		expected,
		c.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	c.Version++
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *caseRepository) GetByCode(ctx context.Context, code string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	var c domain.Case
	if err := scanCase(r.db.QueryRow(ctx, query, arg), &c); err != nil {
		return nil, mapNoRows(err)
	}
	return &c, nil
}

func (r *caseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(code) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM cases WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		caseColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return []domain.Case{}, nil
		}
		return nil, err
	}
	defer rows.Close()
	cases, err := scanCases(rows)
	if isInvalidText(err) {
		// a malformed id filter matches nothing
		return []domain.Case{}, nil
	}
	return cases, err
}

func (r *caseRepository) ListActive(ctx context.Context) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE status <> $1 ORDER BY sla_due_at ASC`
	rows, err := r.db.Query(ctx, query, domain.CaseStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func scanCase(row pgx.Row, c *domain.Case) error {
	return row.Scan(
		&c.ID,
		&c.Code,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.Priority,
		&c.Status,
		&c.AssigneeID,
		&c.CreatedBy,
		&c.SLADueAt,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	result := []domain.Case{}
	for rows.Next() {
		var c domain.Case
		if err := scanCase(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
