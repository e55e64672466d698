package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps err onto an HTTP response.  Typed errors use their
// kind; anything else is a 500 whose cause is logged but not returned.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("internal error", err)
	}
	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError {
		req := c.Request()
		log.WithContext(req.Context()).HTTPError(req.Method, c.Path(), status, err)
		return c.JSON(status, errorBody{Error: ae.Kind.String(), Message: "internal error"})
	}
	return c.JSON(status, errorBody{Error: ae.Kind.String(), Message: ae.Message})
}

// bindAndValidate decodes the JSON body into dst and runs the validator
// installed on the Echo instance.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("malformed JSON body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}
