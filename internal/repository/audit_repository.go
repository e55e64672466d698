package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

// AuditRepo appends and lists event audit entries.  Entries are never
// updated or deleted.
type AuditRepo struct {
	db *database.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *database.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertTx appends one entry and fills in its id.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, a *model.AuditEntry) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO event_audits
		(event_id, request_id, type, source_table, snapshot, actor_id, actor_role, reason, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EventID, a.RequestID, string(a.Type), a.SourceTable, string(a.Snapshot), a.ActorID, a.ActorRole,
		a.Reason, a.DeletedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// List returns entries matching f, newest first.  f.Limit must already be
// clamped by the caller.
func (r *AuditRepo) List(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	q := `SELECT id, event_id, request_id, type, source_table, snapshot, actor_id, actor_role, reason, deleted_at
		FROM event_audits WHERE 1 = 1`
	args := make([]any, 0, 3)
	if f.RequestID != nil {
		q += ` AND request_id = ?`
		args = append(args, *f.RequestID)
	}
	if f.Type != "" {
		q += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	q += ` ORDER BY deleted_at DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.AuditEntry, 0)
	for rows.Next() {
		var (
			a        model.AuditEntry
			typ      string
			snapshot string
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.RequestID, &typ, &a.SourceTable, &snapshot,
			&a.ActorID, &a.ActorRole, &a.Reason, &a.DeletedAt); err != nil {
			return nil, err
		}
		a.Type = model.Category(typ)
		a.Snapshot = []byte(snapshot)
		a.DeletedAt = a.DeletedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByEvent returns how many entries reference eventID.
func (r *AuditRepo) CountByEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_audits WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}
