// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between missing rows, category mismatches and concurrent
// inserts without inspecting driver errors.
package repository

import "errors"

// ErrRequestNotFound is returned when no request header exists for an id.
var ErrRequestNotFound = errors.New("request not found")

// ErrExtensionNotFound is returned when a request exists but none of the
// extension tables holds a row for it.
var ErrExtensionNotFound = errors.New("extension record not found")

// ErrCategoryMismatch is returned when the extension row of a request is
// not (only) in the table named by its category, or when a caller
// addressed the request with the wrong category.
var ErrCategoryMismatch = errors.New("request category does not match its extension record")

// ErrEventNotFound is returned when no confirmed event matches.
var ErrEventNotFound = errors.New("confirmed event not found")

// ErrDuplicate is returned when an insert hits a unique key, typically a
// concurrent confirmation of the same request.
var ErrDuplicate = errors.New("duplicate key")
