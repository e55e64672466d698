// Package calendar renders confirmed events as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/iliyamo/venue-booking/internal/model"
)

// DefaultDuration is used for events stored without a duration.
const DefaultDuration = 120 * time.Minute

// Feed describes the calendar wrapping the events.
type Feed struct {
	Name     string
	Domain   string // suffix of every event UID
	Location *time.Location
}

// Write serializes events to w as a PUBLISH calendar.  Event times are
// interpreted in f.Location and written in UTC.  Events whose schedule
// cannot be parsed are skipped and reported in the returned slice.
func (f Feed) Write(w io.Writer, events []model.ConfirmedEvent, stamp time.Time) ([]uint64, error) {
	cal := f.Build(events, stamp)
	skipped := make([]uint64, 0)
	for _, e := range events {
		if _, _, err := f.span(e); err != nil {
			skipped = append(skipped, e.ID)
		}
	}
	return skipped, cal.SerializeTo(w)
}

// Build assembles the calendar without serializing it.
func (f Feed) Build(events []model.ConfirmedEvent, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//venue-booking//calendar//EN")
	if f.Name != "" {
		cal.SetName(f.Name)
		cal.SetXWRCalName(f.Name)
	}
	if f.Location != nil {
		cal.SetXWRTimezone(f.Location.String())
	}

	for _, e := range events {
		start, end, err := f.span(e)
		if err != nil {
			continue
		}
		ve := cal.AddEvent(f.uid(e))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetCreatedTime(e.ConfirmedAt.UTC())
		ve.SetModifiedAt(e.UpdatedAt.UTC())
		ve.SetStartAt(start.UTC())
		ve.SetEndAt(end.UTC())
		ve.SetSummary(e.Name)
		if strings.TrimSpace(e.Description) != "" {
			ve.SetDescription(e.Description)
		}
		if e.IsActive {
			ve.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			ve.SetStatus(ics.ObjectStatusCancelled)
		}
	}
	return cal
}

func (f Feed) uid(e model.ConfirmedEvent) string {
	domain := f.Domain
	if domain == "" {
		domain = "venue-booking"
	}
	return fmt.Sprintf("event-%d-%s-%d@%s", e.ID, strings.ToLower(string(e.Type)), e.RequestID, domain)
}

// span returns the start and end of an event in the feed's location.  A
// missing start time means the start of the day.
func (f Feed) span(e model.ConfirmedEvent) (time.Time, time.Time, error) {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := strings.TrimSpace(e.StartTime)
	if clock == "" {
		clock = "00:00"
	}
	if len(clock) > 5 {
		clock = clock[:5] // HH:MM:SS from MySQL TIME columns
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", e.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("event %d: bad schedule: %w", e.ID, err)
	}
	d := time.Duration(e.DurationMinutes) * time.Minute
	if d <= 0 {
		d = DefaultDuration
	}
	return start, start.Add(d), nil
}
