package model

import "time"

// Client mirrors the clients table.  Email and phone are stored
// normalized and are each unique when present.
type Client struct {
	ID        uint64    // clients.id
	Name      string    // clients.name
	Email     *string   // clients.email (nullable, unique)
	Phone     *string   // clients.phone (nullable, unique, E.164 when parseable)
	CreatedAt time.Time // clients.created_at
}
