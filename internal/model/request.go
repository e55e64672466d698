package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Category identifies which extension table owns the detail row of a
// request.  The four categories are mutually exclusive: a request has
// exactly one extension row, in the table named by its category.
type Category string

const (
	CategoryRental   Category = "RENTAL"
	CategoryBand     Category = "BAND"
	CategoryService  Category = "SERVICE"
	CategoryWorkshop Category = "WORKSHOP"
)

// Categories lists every category in a stable order.  Dispatch code that
// needs to probe all extension tables iterates over this slice.
var Categories = []Category{CategoryRental, CategoryBand, CategoryService, CategoryWorkshop}

// ParseCategory accepts the upper case tag stored in the database as well
// as the lower case prefix used in request references.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RENTAL":
		return CategoryRental, true
	case "BAND":
		return CategoryBand, true
	case "SERVICE":
		return CategoryService, true
	case "WORKSHOP":
		return CategoryWorkshop, true
	}
	return "", false
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRental, CategoryBand, CategoryService, CategoryWorkshop:
		return true
	}
	return false
}

// ExtensionTable returns the name of the table holding the detail rows
// for the category.  It is also recorded as the source table of a
// confirmed event.
func (c Category) ExtensionTable() string {
	switch c {
	case CategoryRental:
		return "rental_requests"
	case CategoryBand:
		return "band_requests"
	case CategoryService:
		return "service_requests"
	case CategoryWorkshop:
		return "workshop_requests"
	}
	return ""
}

// StatusStorage describes where the status of a request is persisted.
// Some categories keep the status on the request header only, some only
// on the extension row and some on both.  Every copy that exists must be
// written together so that the copies never disagree.
type StatusStorage struct {
	OnRequest   bool
	OnExtension bool
}

// StatusStorage returns the explicit status location mapping for c.
//
//	RENTAL   -> requests.status
//	BAND     -> requests.status + band_requests.status
//	SERVICE  -> requests.status + service_requests.status
//	WORKSHOP -> workshop_requests.status
func (c Category) StatusStorage() StatusStorage {
	switch c {
	case CategoryRental:
		return StatusStorage{OnRequest: true}
	case CategoryBand, CategoryService:
		return StatusStorage{OnRequest: true, OnExtension: true}
	case CategoryWorkshop:
		return StatusStorage{OnExtension: true}
	}
	return StatusStorage{}
}

// Status is the lifecycle state of a request.
type Status string

const (
	StatusRequested Status = "Requested"
	StatusContacted Status = "Contacted"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "requested":
		return StatusRequested, true
	case "contacted":
		return StatusContacted, true
	case "confirmed":
		return StatusConfirmed, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	}
	return "", false
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusContacted, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// HasEvent reports whether a request in status s may own a confirmed
// event row.  Confirmed owns an active row, Cancelled keeps an inactive
// one.
func (s Status) HasEvent() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

var transitions = map[Status]map[Status]bool{
	StatusRequested: {StatusRequested: true, StatusContacted: true, StatusConfirmed: true, StatusCancelled: true},
	StatusContacted: {StatusRequested: true, StatusContacted: true, StatusConfirmed: true, StatusCancelled: true},
	// Leaving Confirmed/Cancelled for Contacted would strand the event row.
	StatusConfirmed: {StatusConfirmed: true, StatusRequested: true, StatusCancelled: true},
	StatusCancelled: {StatusCancelled: true, StatusConfirmed: true, StatusRequested: true},
}

// CanTransition reports whether a request may move from one status to
// another.  Same-status transitions are allowed and idempotent.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// ErrInvalidRef is returned by ParseRequestRef for malformed references.
var ErrInvalidRef = errors.New("invalid request reference")

// RequestRef addresses a request at the API boundary.  The textual form is
// "<category>-<id>" (for example "band-42") or a bare numeric id, in which
// case Category is empty and is resolved from the request header.
type RequestRef struct {
	Category Category
	ID       uint64
}

// ParseRequestRef parses the textual form of a request reference.
func ParseRequestRef(s string) (RequestRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RequestRef{}, ErrInvalidRef
	}
	var ref RequestRef
	if i := strings.IndexByte(s, '-'); i >= 0 {
		c, ok := ParseCategory(s[:i])
		if !ok {
			return RequestRef{}, ErrInvalidRef
		}
		ref.Category = c
		s = s[i+1:]
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return RequestRef{}, ErrInvalidRef
	}
	ref.ID = id
	return ref, nil
}

// String renders the reference in its textual form.
func (r RequestRef) String() string {
	id := strconv.FormatUint(r.ID, 10)
	if r.Category == "" {
		return id
	}
	return strings.ToLower(string(r.Category)) + "-" + id
}

// Request mirrors the generic request header common to all categories.
// Status holds the effective status regardless of which table stores it.
type Request struct {
	ID        uint64    `json:"id"`
	Category  Category  `json:"category"`
	ClientID  *uint64   `json:"client_id,omitempty"`
	Status    Status    `json:"status"`
	IsPublic  bool      `json:"is_public"`
	FlyerRef  *string   `json:"flyer_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the fully qualified reference of the request.
func (r Request) Ref() RequestRef {
	return RequestRef{Category: r.Category, ID: r.ID}
}
