package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/calendar"
	"github.com/iliyamo/venue-booking/internal/logger"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/service"
)

// CalendarHandler serves the public calendar of active, public events as
// JSON and as an iCalendar feed.
type CalendarHandler struct {
	events *service.EventQuery
	feed   calendar.Feed
	log    *logger.Logger
	now    func() time.Time
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(events *service.EventQuery, feed calendar.Feed, log *logger.Logger) *CalendarHandler {
	if events == nil {
		panic("nil event query")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CalendarHandler{events: events, feed: feed, log: log, now: time.Now}
}

// publicEvent strips the fields the public has no business seeing.
type publicEvent struct {
	ID              uint64         `json:"id"`
	Type            model.Category `json:"type"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Date            string         `json:"date"`
	StartTime       string         `json:"start_time"`
	DurationMinutes int            `json:"duration_minutes"`
}

// List handles GET /v1/calendar?from=&to=&type=&limit=.
func (h *CalendarHandler) List(c echo.Context) error {
	events, err := h.query(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]publicEvent, 0, len(events))
	for _, e := range events {
		out = append(out, publicEvent{
			ID:              e.ID,
			Type:            e.Type,
			Name:            e.Name,
			Description:     e.Description,
			Date:            e.Date,
			StartTime:       e.StartTime,
			DurationMinutes: e.DurationMinutes,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ICS handles GET /v1/calendar.ics with the same filters as List.
func (h *CalendarHandler) ICS(c echo.Context) error {
	events, err := h.query(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var buf bytes.Buffer
	skipped, err := h.feed.Write(&buf, events, h.now())
	if err != nil {
		return respondError(c, h.log, apperr.Internal("render calendar", err))
	}
	if len(skipped) > 0 {
		h.log.WithContext(c.Request().Context()).Warn("calendar events skipped",
			slog.Any("event_ids", skipped))
	}
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (h *CalendarHandler) query(c echo.Context) ([]model.ConfirmedEvent, error) {
	q := service.CalendarQuery{
		From: c.QueryParam("from"),
		To:   c.QueryParam("to"),
	}
	if v := c.QueryParam("type"); v != "" {
		cat, ok := model.ParseCategory(v)
		if !ok {
			return nil, apperr.Validation("unknown event type")
		}
		q.Type = cat
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, apperr.Validation("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return h.events.Calendar(c.Request().Context(), q)
}
