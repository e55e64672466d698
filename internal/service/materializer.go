package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// eventStore is what the materializer needs from repository.EventRepo.
type eventStore interface {
	GetByRequestTx(ctx context.Context, tx *sql.Tx, requestID uint64, typ model.Category) (model.ConfirmedEvent, error)
	ReactivateTx(ctx context.Context, tx *sql.Tx, e *model.ConfirmedEvent, now time.Time) error
	InsertTx(ctx context.Context, tx *sql.Tx, e *model.ConfirmedEvent) error
}

// Materializer creates or reactivates the single confirmed event of a
// request.
type Materializer struct {
	*base
	db       *database.DB
	requests *repository.RequestRepo
	events   eventStore
	clients  *ClientResolver
}

// Materialize is the idempotent retry entry point: it ensures the event
// of a confirmed request exists and is active, and returns its id.
// Requests in any other status are rejected with InvalidTransition.
func (m *Materializer) Materialize(ctx context.Context, ref model.RequestRef) (uint64, error) {
	const op = "materialize"
	var id uint64
	err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := m.requests.LockTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if rec.Status != model.StatusConfirmed {
			return apperr.InvalidTransition(fmt.Sprintf("request %s is %s, not %s",
				rec.Ref(), rec.Status, model.StatusConfirmed))
		}
		ev, _, err := m.MaterializeTx(ctx, tx, rec)
		if err != nil {
			return err
		}
		id = ev.ID
		return nil
	})
	if err != nil {
		return 0, m.fail(ctx, op, err)
	}
	return id, nil
}

// MaterializeTx looks the event up by its (request_id, type) key and
//
//   - returns an active event unchanged,
//   - reactivates an inactive one, refreshing its display fields,
//   - or inserts a new one from the extension record.
//
// The caller must hold the lock on rec.  Price fields are never copied.
func (m *Materializer) MaterializeTx(ctx context.Context, tx *sql.Tx, rec *repository.RequestRecord) (model.ConfirmedEvent, string, error) {
	ev, err := m.events.GetByRequestTx(ctx, tx, rec.ID, rec.Category)
	switch {
	case err == nil && ev.IsActive:
		m.metrics.RecordMaterialize(rec.Category, OutcomeReused)
		return ev, OutcomeReused, nil
	case err == nil:
		if err := m.fill(ctx, tx, rec, &ev); err != nil {
			return ev, "", err
		}
		if err := m.events.ReactivateTx(ctx, tx, &ev, m.clock()); err != nil {
			return ev, "", err
		}
		m.metrics.RecordMaterialize(rec.Category, OutcomeReactivated)
		return ev, OutcomeReactivated, nil
	case !errors.Is(err, repository.ErrEventNotFound):
		return ev, "", err
	}

	now := m.clock()
	ev = model.ConfirmedEvent{
		RequestID:   rec.ID,
		Type:        rec.Category,
		SourceTable: rec.Category.ExtensionTable(),
		ConfirmedAt: now,
		UpdatedAt:   now,
	}
	if err := m.fill(ctx, tx, rec, &ev); err != nil {
		return ev, "", err
	}
	err = m.events.InsertTx(ctx, tx, &ev)
	if errors.Is(err, repository.ErrDuplicate) {
		// Another transaction confirmed the same request first.
		won, gErr := m.events.GetByRequestTx(ctx, tx, rec.ID, rec.Category)
		if gErr != nil {
			return ev, "", gErr
		}
		m.metrics.RecordMaterialize(rec.Category, OutcomeReused)
		return won, OutcomeReused, nil
	}
	if err != nil {
		return ev, "", err
	}
	m.metrics.RecordMaterialize(rec.Category, OutcomeCreated)
	return ev, OutcomeCreated, nil
}

// fill copies the display fields of the extension record onto ev and
// resolves its client.  The contact fields of the extension win over the
// client already referenced by the header.
func (m *Materializer) fill(ctx context.Context, tx *sql.Tx, rec *repository.RequestRecord, ev *model.ConfirmedEvent) error {
	d := rec.Extension.Display()
	ev.Name = d.Name
	ev.Description = d.Description
	ev.Date = d.Schedule.Date
	ev.StartTime = d.Schedule.StartTime
	ev.DurationMinutes = d.Schedule.DurationMinutes
	ev.IsPublic = rec.IsPublic
	ev.ClientID = rec.ClientID
	if !d.Contact.Empty() {
		id, err := m.clients.GetOrCreate(ctx, tx, d.Contact)
		if err != nil {
			return fmt.Errorf("resolve client: %w", err)
		}
		if id != nil {
			ev.ClientID = id
		}
	}
	return nil
}
