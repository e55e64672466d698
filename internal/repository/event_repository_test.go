package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/testutil"
)

func newEvent(requestID uint64, typ model.Category, date, start string, public bool) model.ConfirmedEvent {
	return model.ConfirmedEvent{
		RequestID:   requestID,
		Type:        typ,
		SourceTable: typ.ExtensionTable(),
		Name:        "event " + date,
		Date:        date,
		StartTime:   start,
		IsPublic:    public,
		ConfirmedAt: testutil.Now,
		UpdatedAt:   testutil.Now,
	}
}

func TestEventInsertIsUniquePerRequest(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewEventRepo(db)
	ctx := context.Background()
	req, band := testutil.Band(42, "Delta")
	testutil.CreateRequest(t, db, req, band)

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		e := newEvent(42, model.CategoryBand, "2026-04-18", "21:30", true)
		if err := repo.InsertTx(ctx, tx, &e); err != nil {
			return err
		}
		dup := newEvent(42, model.CategoryBand, "2026-04-19", "20:00", true)
		assert.ErrorIs(t, repo.InsertTx(ctx, tx, &dup), repository.ErrDuplicate)
		return nil
	})
	require.NoError(t, err)

	n, err := repo.CountByRequest(ctx, 42, model.CategoryBand)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEventCancelReactivateDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewEventRepo(db)
	ctx := context.Background()
	req, rental := testutil.Rental(3, "Gala")
	testutil.CreateRequest(t, db, req, rental)

	e := newEvent(3, model.CategoryRental, "2026-05-01", "19:00", false)
	later := testutil.Now.Add(time.Hour)
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := repo.InsertTx(ctx, tx, &e); err != nil {
			return err
		}
		if err := repo.CancelTx(ctx, tx, e.ID, later); err != nil {
			return err
		}
		got, err := repo.GetByRequestTx(ctx, tx, 3, model.CategoryRental)
		if err != nil {
			return err
		}
		assert.False(t, got.IsActive)
		require.NotNil(t, got.CancelledAt)
		assert.True(t, got.CancelledAt.Equal(later))

		got.Name = "Gala (moved)"
		if err := repo.ReactivateTx(ctx, tx, &got, later); err != nil {
			return err
		}
		again, err := repo.GetByIDTx(ctx, tx, e.ID)
		if err != nil {
			return err
		}
		assert.True(t, again.IsActive)
		assert.Nil(t, again.CancelledAt)
		assert.Equal(t, "Gala (moved)", again.Name)
		return repo.DeleteTx(ctx, tx, e.ID)
	})
	require.NoError(t, err)

	_, err = repo.Find(ctx, db, e.ID)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
	err = db.WithTx(ctx, func(tx *sql.Tx) error { return repo.CancelTx(ctx, tx, e.ID, later) })
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestListCalendarFiltersAndOrders(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewEventRepo(db)
	ctx := context.Background()
	for i, tc := range []struct {
		date, start string
		public      bool
	}{
		{"2026-04-20", "21:00", true},
		{"2026-04-18", "22:00", true},
		{"2026-04-18", "19:00", true},
		{"2026-04-19", "20:00", false},
	} {
		id := uint64(i + 1)
		req, band := testutil.Band(id, "Band")
		testutil.CreateRequest(t, db, req, band)
		e := newEvent(id, model.CategoryBand, tc.date, tc.start, tc.public)
		require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error { return repo.InsertTx(ctx, tx, &e) }))
	}

	out, err := repo.ListCalendar(ctx, repository.CalendarFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []uint64{3, 2, 1}, []uint64{out[0].RequestID, out[1].RequestID, out[2].RequestID})

	out, err = repo.ListCalendar(ctx, repository.CalendarFilter{From: "2026-04-19", To: "2026-04-30", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].RequestID)

	out, err = repo.ListCalendar(ctx, repository.CalendarFilter{Type: model.CategoryRental, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, out)
}
