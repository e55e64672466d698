package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// the liveness probe and, when db is non-nil, the readiness probe.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterMetrics exposes the Prometheus scrape endpoint.
func RegisterMetrics(e *echo.Echo, h http.Handler) {
	e.GET("/metrics", echo.WrapHandler(h))
}

// RegisterBooking registers the authenticated booking API under /v1.
// Any CLIENT token may change the status of any request except to
// Confirmed; ownership is not checked here and belongs to the upstream
// authorization layer.  Everything else needs staff.  The engine itself
// refuses a confirmation from anyone below staff.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// ---- Requests ----
	g.PUT("/requests/:ref/status", b.SetStatus, middleware.RequireRole("CLIENT", "STAFF", "ADMIN"))
	g.POST("/requests/:ref/event", b.Materialize, middleware.RequireRole("STAFF", "ADMIN"))

	// ---- Events ----
	staff := middleware.RequireRole("STAFF", "ADMIN")
	g.GET("/events/:id", b.GetEvent, staff)
	g.PUT("/events/:id/lineup", b.ReplaceLineup, staff)

	// ---- Audit trail ----
	g.GET("/audits", b.ListAudits, staff)
}

// RegisterPublic registers the unauthenticated calendar endpoints.  mws
// (typically the rate limiter and the response cache, in that order) wrap
// every public route.
func RegisterPublic(e *echo.Echo, c *handler.CalendarHandler, mws ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mws...)
	g.GET("/calendar", c.List)
	g.GET("/calendar.ics", c.ICS)
}
