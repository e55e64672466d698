package middleware // package middleware holds the reusable HTTP middleware of the API

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/logger"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject and role claims into the request
// context.  Tokens are issued by the external auth service; the secret
// must match the one it signs with.  Handlers read the values through
// c.Get("user_id") and c.Get("role"), both strings.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC signatures are accepted; anything else is rejected
			// before the key is handed out.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return unauthorized(c, "invalid token")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "invalid claims")
			}

			sub := subject(claims["sub"])
			if sub == "" {
				return unauthorized(c, "token has no subject")
			}
			role, _ := claims["role"].(string)

			c.Set("user_id", sub)
			c.Set("role", strings.ToUpper(role))
			req := c.Request()
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), logger.ActorIDKey, sub)))
			return next(c)
		}
	}
}

// subject normalises the sub claim.  Tokens minted by older issuers carry
// a numeric id, which JSON decoding turns into a float64.
func subject(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatUint(uint64(t), 10)
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}
