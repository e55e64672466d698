package model

import (
	"encoding/json"
	"time"
)

// AuditEntry records a confirmed event that was removed because its
// request was downgraded.  Snapshot holds the full row as it was right
// before deletion.  Entries are append-only.
type AuditEntry struct {
	ID          uint64          `json:"id"`
	EventID     uint64          `json:"event_id"`
	RequestID   uint64          `json:"request_id"`
	Type        Category        `json:"type"`
	SourceTable string          `json:"source_table"`
	Snapshot    json.RawMessage `json:"snapshot"`
	ActorID     string          `json:"actor_id"`
	ActorRole   string          `json:"actor_role"`
	Reason      string          `json:"reason"`
	DeletedAt   time.Time       `json:"deleted_at"`
}

// AuditFilter narrows ListAudits.  Zero values mean "any".
type AuditFilter struct {
	RequestID *uint64
	Type      Category
	Limit     int
}
