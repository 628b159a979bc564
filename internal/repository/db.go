package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an optimistic write finds the row changed
	// since it was read.
	ErrConflict = errors.New("record modified concurrently")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store exposes the repositories taking part in one unit of work.
type Store interface {
	Cases() CaseRepository
	Audit() AuditLedger
}

// UnitOfWork runs fn so that every write made through the Store either
// commits together or not at all.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	db DBTX
}

func (s *pgStore) Cases() CaseRepository {
	return NewCaseRepository(s.db)
}

func (s *pgStore) Audit() AuditLedger {
	return NewAuditRepository(s.db)
}

type pgUnitOfWork struct {
	db TxBeginner
}

// NewUnitOfWork returns a Postgres-backed UnitOfWork.
func NewUnitOfWork(db TxBeginner) UnitOfWork {
	return &pgUnitOfWork{db: db}
}

func (u *pgUnitOfWork) Within(ctx context.Context, fn func(Store) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&pgStore{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// mapNoRows also treats an id that is not a valid UUID as a missing row.
func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return ErrNotFound
	}
	return err
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
