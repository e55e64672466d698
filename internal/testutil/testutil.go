// Package testutil builds throwaway SQLite databases and fixtures for
// package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// Now is the fixed instant fixtures are stamped with.
var Now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// NewDB opens a migrated SQLite database in a temp dir.  It is closed when
// the test ends.
func NewDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// CreateRequest inserts req and ext and returns the request id.
func CreateRequest(t *testing.T, db *database.DB, req model.Request, ext model.Extension) uint64 {
	t.Helper()
	repo := repository.NewRequestRepo(db)
	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return repo.CreateTx(context.Background(), tx, &req, ext, Now)
	})
	require.NoError(t, err)
	return req.ID
}

// Schedule is the default fixture schedule.
var Schedule = model.Schedule{Date: "2026-04-18", StartTime: "21:30", DurationMinutes: 90}

// Band returns a public band request in status Requested with the given
// id (zero lets the database pick one).
func Band(id uint64, name string, lineup ...model.LineupItem) (model.Request, *model.BandDetail) {
	return model.Request{ID: id, Category: model.CategoryBand, IsPublic: true},
		&model.BandDetail{
			BandName:         name,
			EventName:        name + " live",
			Description:      "a night with " + name,
			Schedule:         Schedule,
			Contact:          model.Contact{Name: name, Email: "booking@" + slug(name) + ".test"},
			TicketPriceCents: 15000,
			GuaranteeCents:   50000,
			Lineup:           lineup,
		}
}

// Rental returns a rental request in status Requested.
func Rental(id uint64, eventName string) (model.Request, *model.RentalDetail) {
	return model.Request{ID: id, Category: model.CategoryRental},
		&model.RentalDetail{
			EventName:    eventName,
			Schedule:     Schedule,
			Contact:      model.Contact{Name: "Ana", Phone: "55 1234 5678"},
			PriceCents:   300000,
			DepositCents: 100000,
		}
}

// Service returns a service request in status Requested.
func Service(id uint64, name string) (model.Request, *model.ServiceDetail) {
	return model.Request{ID: id, Category: model.CategoryService},
		&model.ServiceDetail{ServiceName: name, Schedule: Schedule, PriceCents: 80000}
}

// Workshop returns a workshop request in status Requested.
func Workshop(id uint64, name string) (model.Request, *model.WorkshopDetail) {
	return model.Request{ID: id, Category: model.CategoryWorkshop, IsPublic: true},
		&model.WorkshopDetail{WorkshopName: name, Instructor: "Luz", Schedule: Schedule, Capacity: 12, FeeCents: 45000}
}

// Exec runs a raw statement; tests use it to corrupt fixtures on purpose.
func Exec(t *testing.T, db *database.DB, query string, args ...any) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

// Count returns the result of a COUNT(*) query.
func Count(t *testing.T, db *database.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

func slug(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		}
	}
	return string(out)
}
