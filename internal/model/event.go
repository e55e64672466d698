package model

import "time"

// ConfirmedEvent is the calendar projection of a confirmed request.  At
// most one row exists per (RequestID, Type).  Cancelled requests keep
// their row with IsActive=false; downgraded requests lose it.
//
// Price fields are never copied here.  Readers fetch them from the
// extension record so that there is a single source of truth.
type ConfirmedEvent struct {
	ID              uint64     `json:"id"`
	RequestID       uint64     `json:"request_id"`
	Type            Category   `json:"type"`
	SourceTable     string     `json:"source_table"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
	ClientID        *uint64    `json:"client_id,omitempty"`
	IsPublic        bool       `json:"is_public"`
	IsActive        bool       `json:"is_active"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	ConfirmedAt     time.Time  `json:"confirmed_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PrincipalOrder is the sort order reserved for the principal lineup
// entry.  Guests are numbered from 1 by their position, so the principal
// closes the night.
const PrincipalOrder = 999

// LineupStateConfirmed is the state given to every entry written by the
// reconciler.
const LineupStateConfirmed = "confirmed"

// LineupItem is one element of the canonical lineup list stored as JSON
// on the band extension record.
type LineupItem struct {
	BandID      *uint64 `json:"band_id,omitempty"`
	Name        string  `json:"name" validate:"required,max=200"`
	Order       int     `json:"order"`
	IsPrincipal bool    `json:"is_principal"`
}

// LineupEntry mirrors a lineup_entries row attached to a band event.
type LineupEntry struct {
	ID          uint64    `json:"id"`
	EventID     uint64    `json:"event_id"`
	BandID      *uint64   `json:"band_id,omitempty"`
	Name        string    `json:"name"`
	SortOrder   int       `json:"order"`
	IsPrincipal bool      `json:"is_principal"`
	IsRequester bool      `json:"is_requester"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventDetail is the read model returned to staff: the event row, its
// lineup and the pricing read live from the extension record.
type EventDetail struct {
	ConfirmedEvent
	Status  Status        `json:"request_status"`
	Lineup  []LineupEntry `json:"lineup"`
	Pricing Pricing       `json:"pricing"`
}
