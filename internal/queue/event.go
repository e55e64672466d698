// Package queue defines the messages exchanged over the broker together
// with the publisher used after commit and the consumer that turns them
// into log lines.
package queue

import "time"

// Message kinds published by the booking core.
const (
	KindConfirmed  = "event.confirmed"
	KindCancelled  = "event.cancelled"
	KindDowngraded = "event.downgraded"
)

// EventMessage is published once a status change touching a confirmed
// event has committed.  It carries enough information for downstream
// consumers to log or notify without querying the primary database.
type EventMessage struct {
	Kind       string    `json:"kind"`
	EventID    uint64    `json:"event_id"`
	RequestID  uint64    `json:"request_id"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
