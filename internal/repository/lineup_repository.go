package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
)

// LineupRepo stores the denormalized lineup rows of band events.
type LineupRepo struct{}

// NewLineupRepo returns a LineupRepo.  Every method runs on a caller's
// transaction or queryer, so the repo holds no handle of its own.
func NewLineupRepo() *LineupRepo { return &LineupRepo{} }

// ListTx returns the entries of an event ordered by sort order.
func (r *LineupRepo) ListTx(ctx context.Context, q queryer, eventID uint64) ([]model.LineupEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, event_id, band_id, name, sort_order, is_principal, is_requester, state, created_at
		FROM lineup_entries WHERE event_id = ? ORDER BY sort_order, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.LineupEntry, 0)
	for rows.Next() {
		var (
			e      model.LineupEntry
			bandID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.EventID, &bandID, &e.Name, &e.SortOrder, &e.IsPrincipal,
			&e.IsRequester, &e.State, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BandID = uintPtr(bandID)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteGuestsTx removes every entry of the event that is neither the
// principal nor the requester.
func (r *LineupRepo) DeleteGuestsTx(ctx context.Context, tx *sql.Tx, eventID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM lineup_entries WHERE event_id = ? AND is_principal = 0 AND is_requester = 0`, eventID)
	return err
}

// DeleteByIDsTx removes the listed entries.
func (r *LineupRepo) DeleteByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM lineup_entries WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// UpdateTx rewrites an existing entry in place, keeping its id and
// created_at.
func (r *LineupRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e model.LineupEntry) error {
	_, err := tx.ExecContext(ctx, `UPDATE lineup_entries
		SET band_id = ?, name = ?, sort_order = ?, is_principal = ?, is_requester = ?, state = ?
		WHERE id = ?`,
		nullableUint(e.BandID), e.Name, e.SortOrder, e.IsPrincipal, e.IsRequester, e.State, e.ID)
	return err
}

// InsertBulkTx inserts all entries with a single statement.
func (r *LineupRepo) InsertBulkTx(ctx context.Context, tx *sql.Tx, entries []model.LineupEntry, now time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	query := `INSERT INTO lineup_entries (event_id, band_id, name, sort_order, is_principal, is_requester, state, created_at) VALUES `
	args := make([]any, 0, len(entries)*8)
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, e.EventID, nullableUint(e.BandID), e.Name, e.SortOrder, e.IsPrincipal,
			e.IsRequester, e.State, now.UTC())
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
