package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/testutil"
)

func TestMaterializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(60, "Twice")
	testutil.CreateRequest(t, f.db, req, detail)
	ctx := context.Background()

	_, err := f.svc.Materials.Materialize(ctx, band(60))
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "unconfirmed requests are not materialized")

	res, err := f.setStatus(band(60), model.StatusConfirmed, staff)
	require.NoError(t, err)

	first, err := f.svc.Materials.Materialize(ctx, band(60))
	require.NoError(t, err)
	second, err := f.svc.Materials.Materialize(ctx, band(60))
	require.NoError(t, err)
	assert.Equal(t, *res.EventID, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 60`))
}

func TestMaterializeTxReactivatesCancelledRow(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(61, "Fair")
	testutil.CreateRequest(t, f.db, req, rental)
	ref := model.RequestRef{ID: 61}
	res, err := f.setStatus(ref, model.StatusConfirmed, staff)
	require.NoError(t, err)
	_, err = f.setStatus(ref, model.StatusCancelled, staff)
	require.NoError(t, err)

	testutil.Exec(t, f.db, `UPDATE rental_requests SET event_name = 'Fair (new date)', event_date = '2026-06-01' WHERE request_id = 61`)

	requests := repository.NewRequestRepo(f.db)
	ctx := context.Background()
	var (
		ev      model.ConfirmedEvent
		outcome string
	)
	err = f.db.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := requests.LockTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		ev, outcome, err = f.svc.Materials.MaterializeTx(ctx, tx, rec)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReactivated, outcome)
	assert.Equal(t, *res.EventID, ev.ID)
	assert.True(t, ev.IsActive)
	assert.Nil(t, ev.CancelledAt)
	assert.Equal(t, "Fair (new date)", ev.Name)
	assert.Equal(t, "2026-06-01", ev.Date)
}

func TestActiveEventIsNotRefreshed(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(62, "Original")
	testutil.CreateRequest(t, f.db, req, rental)
	res, err := f.setStatus(model.RequestRef{ID: 62}, model.StatusConfirmed, staff)
	require.NoError(t, err)

	testutil.Exec(t, f.db, `UPDATE rental_requests SET event_name = 'Renamed' WHERE request_id = 62`)
	_, err = f.setStatus(model.RequestRef{ID: 62}, model.StatusConfirmed, staff)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE id = ? AND name = 'Original'`, *res.EventID))
}

func TestBandEventCarriesNoPriceAndDetailReadsItLive(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(63, "Priced")
	testutil.CreateRequest(t, f.db, req, detail)
	res, err := f.setStatus(band(63), model.StatusConfirmed, staff)
	require.NoError(t, err)

	testutil.Exec(t, f.db, `UPDATE band_requests SET ticket_price_cents = 20000 WHERE request_id = 63`)
	out, err := f.svc.Events.Detail(context.Background(), *res.EventID)
	require.NoError(t, err)
	require.NotNil(t, out.Pricing.TicketPriceCents)
	assert.Equal(t, int64(20000), *out.Pricing.TicketPriceCents)
	assert.Equal(t, model.StatusConfirmed, out.Status)
	assert.Equal(t, "band_requests", out.SourceTable)

	_, err = f.svc.Events.Detail(context.Background(), 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMaterializeResolvesClientFromContact(t *testing.T) {
	f := newFixture(t)
	r1, d1 := testutil.Band(64, "Echo")
	d1.Contact = model.Contact{Name: "Eve", Email: " Eve@Example.TEST "}
	testutil.CreateRequest(t, f.db, r1, d1)
	r2, d2 := testutil.Band(65, "Echo II")
	d2.Contact = model.Contact{Email: "eve@example.test"}
	testutil.CreateRequest(t, f.db, r2, d2)

	_, err := f.setStatus(band(64), model.StatusConfirmed, staff)
	require.NoError(t, err)
	_, err = f.setStatus(band(65), model.StatusConfirmed, staff)
	require.NoError(t, err)

	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM clients WHERE email = 'eve@example.test' AND name = 'Eve'`))
	assert.Equal(t, 2, f.count(t, `SELECT COUNT(*) FROM confirmed_events e JOIN clients c ON c.id = e.client_id
		WHERE c.email = 'eve@example.test'`))
}

// racingEvents inserts a competing row for the same request just before
// the materializer's own insert, as a concurrent confirm would.
type racingEvents struct {
	*repository.EventRepo
	winner model.ConfirmedEvent
}

func (r *racingEvents) InsertTx(ctx context.Context, tx *sql.Tx, e *model.ConfirmedEvent) error {
	r.winner = *e
	r.winner.Name = "first writer"
	if err := r.EventRepo.InsertTx(ctx, tx, &r.winner); err != nil {
		return err
	}
	return r.EventRepo.InsertTx(ctx, tx, e)
}

func TestMaterializeTxRereadsRowOnDuplicateKey(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(64, "Contested")
	testutil.CreateRequest(t, f.db, req, rental)
	racing := &racingEvents{EventRepo: repository.NewEventRepo(f.db)}
	f.svc.Materials.events = racing

	res, err := f.setStatus(model.RequestRef{ID: 64}, model.StatusConfirmed, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	require.NotZero(t, racing.winner.ID)
	assert.Equal(t, racing.winner.ID, *res.EventID)
	assert.Equal(t, []string{OutcomeReused}, f.metrics.outcomes)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 64`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE id = ? AND name = 'first writer'`, *res.EventID))
	assert.Empty(t, f.notifier.kinds(), "the losing confirm publishes nothing")
}
