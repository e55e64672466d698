package handler

// booking.go exposes the confirmation core to staff: status changes,
// manual materialization, lineup replacement, event detail and the
// downgrade audit trail.

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/logger"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/service"
)

// BookingHandler serves the authenticated booking API.
type BookingHandler struct {
	svc *service.Booking // wired core components
	log *logger.Logger   // used for 5xx logging
}

// NewBookingHandler constructs a BookingHandler.  It panics when svc is nil
// so that a miswired server fails at startup rather than on first request.
func NewBookingHandler(svc *service.Booking, log *logger.Logger) *BookingHandler {
	if svc == nil {
		panic("nil booking service")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BookingHandler{svc: svc, log: log}
}

// setStatusRequest is the body of PUT /v1/requests/:ref/status.
type setStatusRequest struct {
	Status string             `json:"status" validate:"required"`
	Reason string             `json:"reason" validate:"max=500"`
	Lineup []model.LineupItem `json:"lineup" validate:"omitempty,dive"`
}

// lineupRequest is the body of PUT /v1/events/:id/lineup.
type lineupRequest struct {
	Lineup []model.LineupItem `json:"lineup" validate:"dive"`
}

// SetStatus handles PUT /v1/requests/:ref/status.  The ref is either
// "<category>-<id>" or a bare request id.
func (h *BookingHandler) SetStatus(c echo.Context) error {
	ref, err := model.ParseRequestRef(c.Param("ref"))
	if err != nil {
		return respondError(c, h.log, apperr.Validation("invalid request reference"))
	}
	var req setStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		status = model.Status(req.Status) // rejected by the engine as an invalid transition
	}
	res, err := h.svc.Engine.SetStatus(c.Request().Context(), service.StatusChange{
		Ref:    ref,
		Status: status,
		Actor:  middleware.ActorFrom(c),
		Reason: strings.TrimSpace(req.Reason),
		Lineup: req.Lineup,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Materialize handles POST /v1/requests/:ref/event.  It creates or
// reactivates the event of a confirmed request and is safe to repeat.
func (h *BookingHandler) Materialize(c echo.Context) error {
	ref, err := model.ParseRequestRef(c.Param("ref"))
	if err != nil {
		return respondError(c, h.log, apperr.Validation("invalid request reference"))
	}
	id, err := h.svc.Materials.Materialize(c.Request().Context(), ref)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id})
}

// GetEvent handles GET /v1/events/:id.
func (h *BookingHandler) GetEvent(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	out, err := h.svc.Events.Detail(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ReplaceLineup handles PUT /v1/events/:id/lineup.  The list becomes the
// canonical lineup of the band request and the event mirrors it.
func (h *BookingHandler) ReplaceLineup(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req lineupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	items, err := h.svc.Lineups.ReplaceLineup(c.Request().Context(), id, req.Lineup)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListAudits handles GET /v1/audits?request_id=&type=&limit=.
func (h *BookingHandler) ListAudits(c echo.Context) error {
	var f model.AuditFilter
	if v := c.QueryParam("request_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			return respondError(c, h.log, err)
		}
		f.RequestID = &id
	}
	if v := c.QueryParam("type"); v != "" {
		cat, ok := model.ParseCategory(v)
		if !ok {
			return respondError(c, h.log, apperr.Validation("unknown request type"))
		}
		f.Type = cat
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return respondError(c, h.log, apperr.Validation("limit must be a non-negative integer"))
		}
		f.Limit = n
	}
	items, err := h.svc.Audits.ListAudits(c.Request().Context(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// parseID parses a positive numeric path or query parameter.
func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}
