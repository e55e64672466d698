package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

// EventRepo persists confirmed events.  Only the materializer, the
// lineup reconciler and the audit recorder write through it.
type EventRepo struct {
	db *database.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *database.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, request_id, type, source_table, name, description, event_date, start_time,
	duration_minutes, client_id, is_public, is_active, cancelled_at, confirmed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.ConfirmedEvent, error) {
	var (
		e           model.ConfirmedEvent
		typ         string
		clientID    sql.NullInt64
		cancelledAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.RequestID, &typ, &e.SourceTable, &e.Name, &e.Description, &e.Date,
		&e.StartTime, &e.DurationMinutes, &clientID, &e.IsPublic, &e.IsActive, &cancelledAt,
		&e.ConfirmedAt, &e.UpdatedAt)
	if err != nil {
		return model.ConfirmedEvent{}, err
	}
	e.Type = model.Category(typ)
	e.ClientID = uintPtr(clientID)
	e.CancelledAt = timePtr(cancelledAt)
	e.ConfirmedAt = e.ConfirmedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

// GetByRequestTx looks an event up by its unique (request_id, type) key
// and locks it.  It returns ErrEventNotFound when none exists.
func (r *EventRepo) GetByRequestTx(ctx context.Context, tx *sql.Tx, requestID uint64, typ model.Category) (model.ConfirmedEvent, error) {
	e, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM confirmed_events WHERE request_id = ? AND type = ?`+r.db.Dialect.ForUpdate(),
		requestID, string(typ)))
	if IsNoRows(err) {
		return e, ErrEventNotFound
	}
	return e, err
}

// GetByIDTx returns the event with the given id, locking it.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.ConfirmedEvent, error) {
	e, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM confirmed_events WHERE id = ?`+r.db.Dialect.ForUpdate(), id))
	if IsNoRows(err) {
		return e, ErrEventNotFound
	}
	return e, err
}

// Find returns the event with the given id without locking it.  q is
// either the database or a transaction.
func (r *EventRepo) Find(ctx context.Context, q queryer, id uint64) (model.ConfirmedEvent, error) {
	e, err := scanEvent(q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM confirmed_events WHERE id = ?`, id))
	if IsNoRows(err) {
		return e, ErrEventNotFound
	}
	return e, err
}

// InsertTx creates a new active event and fills in its id.  A concurrent
// insert of the same (request_id, type) surfaces as ErrDuplicate.
func (r *EventRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.ConfirmedEvent) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO confirmed_events
		(request_id, type, source_table, name, description, event_date, start_time, duration_minutes,
		 client_id, is_public, is_active, cancelled_at, confirmed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		e.RequestID, string(e.Type), e.SourceTable, e.Name, e.Description, e.Date, e.StartTime,
		e.DurationMinutes, nullableUint(e.ClientID), e.IsPublic, true, e.ConfirmedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		if r.db.Dialect.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.IsActive = true
	e.CancelledAt = nil
	return nil
}

// ReactivateTx turns a cancelled event back on and refreshes its
// denormalized display fields from e.
func (r *EventRepo) ReactivateTx(ctx context.Context, tx *sql.Tx, e *model.ConfirmedEvent, now time.Time) error {
	now = now.UTC()
	res, err := tx.ExecContext(ctx, `UPDATE confirmed_events
		SET name = ?, description = ?, event_date = ?, start_time = ?, duration_minutes = ?,
		    client_id = ?, is_public = ?, is_active = ?, cancelled_at = NULL, updated_at = ?
		WHERE id = ?`,
		e.Name, e.Description, e.Date, e.StartTime, e.DurationMinutes, nullableUint(e.ClientID),
		e.IsPublic, true, now, e.ID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	e.IsActive = true
	e.CancelledAt = nil
	e.UpdatedAt = now
	return nil
}

// CancelTx deactivates an event and stamps cancelled_at.  The row stays.
func (r *EventRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	now = now.UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE confirmed_events SET is_active = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
		false, now, now, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteTx removes an event together with its lineup entries.
func (r *EventRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lineup_entries WHERE event_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM confirmed_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CountByRequest returns how many event rows exist for (requestID, typ).
// The unique key keeps it at zero or one.
func (r *EventRepo) CountByRequest(ctx context.Context, requestID uint64, typ model.Category) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM confirmed_events WHERE request_id = ? AND type = ?`, requestID, string(typ)).Scan(&n)
	return n, err
}

// CalendarFilter narrows ListCalendar.  Dates are inclusive YYYY-MM-DD
// bounds; empty means unbounded.
type CalendarFilter struct {
	From  string
	To    string
	Type  model.Category
	Limit int
}

// ListCalendar returns active public events ordered by date and start
// time.
func (r *EventRepo) ListCalendar(ctx context.Context, f CalendarFilter) ([]model.ConfirmedEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM confirmed_events WHERE is_active = ? AND is_public = ?`
	args := []any{true, true}
	if f.From != "" {
		q += ` AND event_date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		q += ` AND event_date <= ?`
		args = append(args, f.To)
	}
	if f.Type != "" {
		q += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	q += ` ORDER BY event_date, start_time, id LIMIT ?`
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ConfirmedEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
