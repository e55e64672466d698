package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSavepointLost is returned by Savepoint when the work inside it failed
// and rolling back to the savepoint failed too.  The enclosing transaction
// can no longer be trusted (MySQL rolls the whole transaction back on a
// deadlock, taking the savepoint with it) and must not be committed.
var ErrSavepointLost = errors.New("savepoint lost")

// WithTx runs fn inside a transaction.  The transaction commits when fn
// returns nil and rolls back otherwise, including on panic.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
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
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Savepoint runs fn inside a named savepoint of tx.  When fn fails the
// work done since the savepoint is undone and the error is returned; the
// enclosing transaction stays usable.  If the undo itself fails the error
// wraps ErrSavepointLost.
func Savepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w: rollback to savepoint %s: %v (after %v)", ErrSavepointLost, name, rbErr, err)
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}
