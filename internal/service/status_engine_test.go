package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/logger"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/testutil"
)

func TestBandConfirmDowngradeConfirm(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(42, "Los Tigres")
	testutil.CreateRequest(t, f.db, req, detail)

	res, err := f.setStatus(band(42), model.StatusConfirmed, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	e1 := *res.EventID
	assert.Equal(t, model.StatusRequested, res.Previous)
	assert.Equal(t, model.StatusConfirmed, res.Status)

	res, err = f.setStatus(band(42), model.StatusConfirmed, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	assert.Equal(t, e1, *res.EventID)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 42 AND type = 'BAND'`))

	res, err = f.setStatus(band(42), model.StatusRequested, staff)
	require.NoError(t, err)
	assert.Nil(t, res.EventID)
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 42`))
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM lineup_entries WHERE event_id = ?`, e1))

	audits, err := f.svc.Audits.ListAudits(context.Background(), model.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, audits, 1)
	a1 := audits[0]
	assert.Equal(t, e1, a1.EventID)
	assert.Equal(t, uint64(42), a1.RequestID)
	assert.Equal(t, "band_requests", a1.SourceTable)
	assert.Equal(t, staff.ID, a1.ActorID)
	assert.Equal(t, "STAFF", a1.ActorRole)

	var snap struct {
		Event  model.ConfirmedEvent `json:"event"`
		Lineup []model.LineupEntry  `json:"lineup"`
	}
	require.NoError(t, json.Unmarshal(a1.Snapshot, &snap))
	assert.Equal(t, e1, snap.Event.ID)
	assert.Equal(t, "Los Tigres live", snap.Event.Name)
	require.Len(t, snap.Lineup, 1)
	assert.True(t, snap.Lineup[0].IsPrincipal)

	res, err = f.setStatus(band(42), model.StatusConfirmed, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	assert.NotEqual(t, e1, *res.EventID)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 42`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM event_audits WHERE request_id = 42`))

	assert.Equal(t, []string{queue.KindConfirmed, queue.KindDowngraded, queue.KindConfirmed}, f.notifier.kinds())
	assert.Equal(t, []string{OutcomeCreated, OutcomeReused, OutcomeCreated}, f.metrics.outcomes)
	assert.Equal(t, 1, f.metrics.audits)
}

func TestConfirmNeedsStaff(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(7, "Birthday")
	testutil.CreateRequest(t, f.db, req, rental)

	_, err := f.setStatus(model.RequestRef{ID: 7}, model.StatusConfirmed, client)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE id = 7 AND status = 'Requested'`))
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM confirmed_events`))
	assert.Equal(t, 1, f.metrics.failed)

	// clients may still move between the unconfirmed states
	_, err = f.setStatus(model.RequestRef{ID: 7}, model.StatusContacted, client)
	require.NoError(t, err)
}

func TestCancelThenReconfirmReactivatesSameRow(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(9, "Gala")
	testutil.CreateRequest(t, f.db, req, rental)
	ref := model.RequestRef{ID: 9}

	res, err := f.setStatus(ref, model.StatusConfirmed, admin)
	require.NoError(t, err)
	id := *res.EventID

	res, err = f.setStatus(ref, model.StatusCancelled, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	assert.Equal(t, id, *res.EventID)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events
		WHERE id = ? AND is_active = 0 AND cancelled_at IS NOT NULL`, id))

	// cancelling twice does not touch the row again
	_, err = f.setStatus(ref, model.StatusCancelled, staff)
	require.NoError(t, err)

	res, err = f.setStatus(ref, model.StatusConfirmed, staff)
	require.NoError(t, err)
	assert.Equal(t, id, *res.EventID)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events
		WHERE id = ? AND is_active = 1 AND cancelled_at IS NULL`, id))
	assert.Equal(t, []string{OutcomeCreated, OutcomeReactivated}, f.metrics.outcomes)
	assert.Equal(t, []string{queue.KindConfirmed, queue.KindCancelled, queue.KindConfirmed}, f.notifier.kinds())
}

func TestDowngradeWithoutEventIsNoop(t *testing.T) {
	f := newFixture(t)
	req, svc := testutil.Service(11, "Lights")
	testutil.CreateRequest(t, f.db, req, svc)

	_, err := f.setStatus(model.RequestRef{ID: 11}, model.StatusContacted, staff)
	require.NoError(t, err)
	res, err := f.setStatus(model.RequestRef{ID: 11}, model.StatusRequested, staff)
	require.NoError(t, err)
	assert.Nil(t, res.EventID)
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM event_audits`))
	assert.Empty(t, f.notifier.kinds())
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM service_requests WHERE request_id = 11 AND status = 'Requested'`))
}

func TestStatusChangeErrors(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(1, "Alpha")
	testutil.CreateRequest(t, f.db, req, detail)

	_, err := f.setStatus(band(1), model.Status("Archived"), staff)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))

	_, err = f.setStatus(band(404), model.StatusContacted, staff)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.setStatus(model.RequestRef{Category: model.CategoryWorkshop, ID: 1}, model.StatusContacted, staff)
	assert.True(t, apperr.Is(err, apperr.KindReferentialViolation))

	_, err = f.setStatus(band(1), model.StatusConfirmed, staff)
	require.NoError(t, err)
	_, err = f.setStatus(band(1), model.StatusContacted, staff)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))

	_, err = f.svc.Engine.SetStatus(context.Background(), StatusChange{
		Ref: band(1), Status: model.StatusCancelled, Actor: staff,
		Lineup: []model.LineupItem{{Name: "X"}},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestMissingExtensionRollsBackStatus(t *testing.T) {
	f := newFixture(t)
	req, svc := testutil.Service(12, "Stage")
	testutil.CreateRequest(t, f.db, req, svc)
	testutil.Exec(t, f.db, `DELETE FROM service_requests WHERE request_id = 12`)

	_, err := f.setStatus(model.RequestRef{ID: 12}, model.StatusConfirmed, staff)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE id = 12 AND status = 'Requested'`))
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM confirmed_events`))
}

func TestWorkshopStatusLivesOnExtension(t *testing.T) {
	f := newFixture(t)
	req, ws := testutil.Workshop(20, "Mixing")
	testutil.CreateRequest(t, f.db, req, ws)

	res, err := f.setStatus(model.RequestRef{ID: 20}, model.StatusConfirmed, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM workshop_requests WHERE request_id = 20 AND status = 'Confirmed'`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE id = 20 AND status IS NULL`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE id = ? AND name = 'Mixing'`, *res.EventID))
}

func TestLineupFailureKeepsStatusChange(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(30, "Omega")
	testutil.CreateRequest(t, f.db, req, detail)
	testutil.Exec(t, f.db, `DROP TABLE lineup_entries`)

	res, err := f.setStatus(band(30), model.StatusConfirmed, staff)
	require.NoError(t, err)
	require.NotNil(t, res.EventID)
	assert.Equal(t, 1, f.metrics.lineupFailures)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE id = 30 AND status = 'Confirmed'`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 30 AND is_active = 1`))
}

func TestConfirmWithLineupPayload(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(31, "Host")
	testutil.CreateRequest(t, f.db, req, detail)

	res, err := f.svc.Engine.SetStatus(context.Background(), StatusChange{
		Ref: band(31), Status: model.StatusConfirmed, Actor: staff,
		Lineup: []model.LineupItem{
			{Name: "Opener"},
			{Name: "Host", IsPrincipal: true},
			{Name: "Closer", IsPrincipal: true},
		},
	})
	require.NoError(t, err)

	detailOut, err := f.svc.Events.Detail(context.Background(), *res.EventID)
	require.NoError(t, err)
	require.Len(t, detailOut.Lineup, 3)
	principals := 0
	for _, e := range detailOut.Lineup {
		if e.IsPrincipal {
			principals++
			assert.Equal(t, "Host", e.Name)
			assert.True(t, e.IsRequester)
			assert.Equal(t, model.PrincipalOrder, e.SortOrder)
		}
	}
	assert.Equal(t, 1, principals)
	assert.Equal(t, "Opener", detailOut.Lineup[0].Name)
	assert.Equal(t, 1, detailOut.Lineup[0].SortOrder)
	assert.Equal(t, "Closer", detailOut.Lineup[1].Name)
	assert.Equal(t, 3, detailOut.Lineup[1].SortOrder)

	// the payload became the canonical list on the request
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM band_requests WHERE request_id = 31 AND lineup_json LIKE '%Closer%'`))
}

func TestCancelledDowngradeAuditsInactiveRow(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(13, "Gala")
	testutil.CreateRequest(t, f.db, req, rental)
	ref := model.RequestRef{ID: 13}

	res, err := f.setStatus(ref, model.StatusConfirmed, staff)
	require.NoError(t, err)
	eventID := *res.EventID
	_, err = f.setStatus(ref, model.StatusCancelled, staff)
	require.NoError(t, err)

	res, err = f.setStatus(ref, model.StatusRequested, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Previous)
	assert.Nil(t, res.EventID)
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 13`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE id = 13 AND status = 'Requested'`))

	audits, err := f.svc.Audits.ListAudits(context.Background(), model.AuditFilter{RequestID: u64(13)})
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, eventID, audits[0].EventID)
	assert.Equal(t, "rental_requests", audits[0].SourceTable)

	var snap struct {
		Event model.ConfirmedEvent `json:"event"`
	}
	require.NoError(t, json.Unmarshal(audits[0].Snapshot, &snap))
	assert.False(t, snap.Event.IsActive)
	assert.NotNil(t, snap.Event.CancelledAt)

	assert.Equal(t, []string{queue.KindConfirmed, queue.KindCancelled, queue.KindDowngraded}, f.notifier.kinds())

	// a second downgrade finds nothing to audit
	_, err = f.setStatus(ref, model.StatusRequested, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM event_audits WHERE request_id = 13`))
}

// savepointBreaker fails the reconcile after releasing the savepoint the
// engine opened around it, the way a MySQL deadlock discards it.
type savepointBreaker struct{}

func (savepointBreaker) ReconcileTx(ctx context.Context, tx *sql.Tx, _ uint64, _ []model.LineupItem) error {
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT lineup_reconcile`); err != nil {
		return err
	}
	return errors.New("deadlock found when trying to get lock")
}

func TestLostSavepointAbortsStatusChange(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(31, "Sigma")
	testutil.CreateRequest(t, f.db, req, detail)
	f.svc.Engine.lineup = savepointBreaker{}

	res, err := f.setStatus(band(31), model.StatusConfirmed, staff)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorIs(t, err, database.ErrSavepointLost)
	assert.Nil(t, res.EventID)
	assert.Equal(t, 0, f.metrics.lineupFailures)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE id = 31 AND status = 'Requested'`))
	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM confirmed_events WHERE request_id = 31`))
	assert.Empty(t, f.notifier.kinds())
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, queue.EventMessage) error {
	return errors.New("rabbitmq dial: connection refused")
}

func TestPublishFailureIsLoggedOnce(t *testing.T) {
	db := testutil.NewDB(t)
	var buf bytes.Buffer
	svc := New(db, Options{
		Logger:   logger.NewWithWriter(&buf, "production", false),
		Notifier: failingNotifier{},
		Clock:    tickingClock(),
	})
	req, rental := testutil.Rental(14, "Launch")
	testutil.CreateRequest(t, db, req, rental)

	res, err := svc.Engine.SetStatus(context.Background(), StatusChange{
		Ref: model.RequestRef{ID: 14}, Status: model.StatusConfirmed, Actor: staff,
	})
	require.NoError(t, err, "a lost message does not undo the change")
	require.NotNil(t, res.EventID)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, buf.String())
	assert.Contains(t, lines[0], `"level":"WARN"`)
	assert.Contains(t, lines[0], "event message not published")
	assert.Contains(t, lines[0], "connection refused")
}
