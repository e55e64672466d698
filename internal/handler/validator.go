package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/venue-booking/internal/apperr"
)

// Validator adapts go-playground/validator to echo.Validator.  Install it
// with e.Validator = handler.NewValidator().
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator using struct tags named "validate".
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks s and reports failures as an apperr validation error
// naming every offending field.
func (val *Validator) Validate(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}
