package repository

import (
	"context"
	"database/sql"
)

// Querier is the subset of database/sql operations repositories need.
// Both *sql.DB and *sql.Tx satisfy it, so the same repository method
// can run standalone or inside a transaction owned by the caller.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner executes a function inside a transaction. The function's
// writes either all commit or all roll back; returning an error (or
// panicking) aborts the transaction. Tests substitute an in-memory
// runner so services can be exercised without a database.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// SQLRunner is the production TxRunner backed by *sql.DB.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner returns a TxRunner that opens real transactions on db.
func NewSQLRunner(db *sql.DB) *SQLRunner { return &SQLRunner{db: db} }

// InTx begins a transaction, runs fn and commits. The rollback in the
// deferred path is a no-op after a successful commit.
func (r *SQLRunner) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DB exposes the underlying handle for non-transactional reads.
func (r *SQLRunner) DB() *sql.DB { return r.db }
