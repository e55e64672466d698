package middleware

// identity.go holds the helpers that turn what JWTAuth stored in the
// Echo context into an actor, plus the request id middleware that tags
// every request's context for the logger.

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/venue-booking/internal/logger"
	"github.com/iliyamo/venue-booking/internal/model"
)

// ActorFrom returns the authenticated actor.  Without a token the actor
// has an empty id and RoleUnknown.
func ActorFrom(c echo.Context) model.Actor {
	id, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	return model.Actor{ID: id, Role: model.ParseRole(role)}
}

// currentUserID returns the authenticated user id, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}

// RequestID assigns a UUID to every request lacking an X-Request-ID
// header, echoes it back and stores it in the request context.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), logger.RequestIDKey, id)))
		},
	})
}
