package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// queryer is satisfied by *sql.DB and *sql.Tx.  Read paths that run both
// inside and outside a transaction accept it.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullableUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func uintPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
