package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/case-service/internal/domain"
)

// AuditLedger is the append-only store of lifecycle events. It deliberately
// offers no way to change or remove an entry once appended.
type AuditLedger interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	// Trail returns a case's entries newest first with performer identity.
	Trail(ctx context.Context, caseID string) ([]domain.AuditTrailEntry, error)
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) AuditLedger {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	const query = `
        INSERT INTO audit_entries (id, case_id, action, previous_status, new_status,
                                   previous_assignee_id, new_assignee_id, performed_by, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING seq`
	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.CaseID,
		entry.Action,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.PreviousAssignee,
		entry.NewAssignee,
		entry.PerformedBy,
		details,
		entry.CreatedAt,
	).Scan(&entry.Seq)
}

func (r *auditRepository) Trail(ctx context.Context, caseID string) ([]domain.AuditTrailEntry, error) {
	const query = `
        SELECT a.id, a.seq, a.case_id, a.action, a.previous_status, a.new_status,
               a.previous_assignee_id, a.new_assignee_id, a.performed_by, a.details, a.created_at,
               COALESCE(u.name, ''), COALESCE(u.email, '')
        FROM audit_entries a
        LEFT JOIN users u ON u.id = a.performed_by
        WHERE a.case_id=$1
        ORDER BY a.created_at DESC, a.seq DESC`
	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.AuditTrailEntry{}
	for rows.Next() {
		var entry domain.AuditTrailEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Seq,
			&entry.CaseID,
			&entry.Action,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.PreviousAssignee,
			&entry.NewAssignee,
			&entry.PerformedBy,
			&entry.Details,
			&entry.CreatedAt,
			&entry.PerformerName,
			&entry.PerformerEmail,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
