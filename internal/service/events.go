package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

const (
	defaultCalendarLimit = 100
	maxCalendarLimit     = 1000
)

// EventQuery serves the read side: event detail for staff and the public
// calendar.
type EventQuery struct {
	*base
	db       *database.DB
	requests *repository.RequestRepo
	events   *repository.EventRepo
	lineups  *repository.LineupRepo
}

// Detail returns an event with its lineup and the pricing read live from
// the extension record.
func (q *EventQuery) Detail(ctx context.Context, eventID uint64) (model.EventDetail, error) {
	var out model.EventDetail
	err := q.db.WithTx(ctx, func(tx *sql.Tx) error {
		ev, err := q.events.Find(ctx, tx, eventID)
		if err != nil {
			return err
		}
		rec, err := q.requests.GetTx(ctx, tx, model.RequestRef{Category: ev.Type, ID: ev.RequestID})
		if err != nil {
			return err
		}
		lineup := []model.LineupEntry{}
		if ev.Type == model.CategoryBand {
			if lineup, err = q.lineups.ListTx(ctx, tx, ev.ID); err != nil {
				return err
			}
		}
		out = model.EventDetail{
			ConfirmedEvent: ev,
			Status:         rec.Status,
			Lineup:         lineup,
			Pricing:        rec.Extension.Pricing(),
		}
		return nil
	})
	if err != nil {
		return model.EventDetail{}, q.fail(ctx, "event_detail", err)
	}
	return out, nil
}

// CalendarQuery filters the public calendar.  From and To are inclusive
// YYYY-MM-DD dates.
type CalendarQuery struct {
	From  string
	To    string
	Type  model.Category
	Limit int
}

// Calendar lists active public events in date order.
func (q *EventQuery) Calendar(ctx context.Context, cq CalendarQuery) ([]model.ConfirmedEvent, error) {
	for _, d := range []string{cq.From, cq.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, apperr.Validation("dates must use the YYYY-MM-DD format")
		}
	}
	if cq.Type != "" && !cq.Type.Valid() {
		return nil, apperr.Validation("unknown event type")
	}
	switch {
	case cq.Limit <= 0:
		cq.Limit = defaultCalendarLimit
	case cq.Limit > maxCalendarLimit:
		cq.Limit = maxCalendarLimit
	}
	out, err := q.events.ListCalendar(ctx, repository.CalendarFilter{
		From: cq.From, To: cq.To, Type: cq.Type, Limit: cq.Limit,
	})
	if err != nil {
		return nil, q.fail(ctx, "calendar", err)
	}
	return out, nil
}
