package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSuchTable is returned when introspecting a table that does not exist.
var ErrNoSuchTable = errors.New("no such table")

// Exec runs a statement that returns no rows (INSERT, UPDATE, DELETE, DDL)
// and reports the number of rows it affected.
func (s *Store) Exec(ctx context.Context, statement string) (int64, error) {
	res, err := s.db.ExecContext(ctx, statement)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ExecAll runs statements in order inside a single transaction. Either
// every statement is applied or none is.
func (s *Store) ExecAll(ctx context.Context, statements ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // No-op if already committed
	}()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
