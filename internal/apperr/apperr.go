// Package apperr provides the typed errors surfaced by the booking core.
// Services return these errors and never leak raw storage errors; the
// HTTP layer maps each Kind onto a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a request, extension record or event is missing.
	KindNotFound
	// KindForbidden indicates the actor lacks the privilege for the action.
	KindForbidden
	// KindInvalidTransition indicates an unrecognized or unsupported target status.
	KindInvalidTransition
	// KindReferentialViolation indicates a category/extension-table mismatch.
	KindReferentialViolation
	// KindValidation indicates invalid input data.
	KindValidation
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindConflict indicates a conflict with concurrent state.
	KindConflict
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindReferentialViolation:
		return "referential_violation"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindReferentialViolation, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation on the error and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// InvalidTransition creates an invalid transition error.
func InvalidTransition(message string) *Error { return New(KindInvalidTransition, message) }

// ReferentialViolation creates a category/extension mismatch error.
func ReferentialViolation(message string) *Error { return New(KindReferentialViolation, message) }

// Validation creates a validation error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Internal wraps an unexpected failure.  The cause is kept for logging
// but its text is not part of Message.
func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// GetKind extracts the error kind from anywhere in the chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
