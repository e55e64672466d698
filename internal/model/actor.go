package model

import "strings"

// Role orders the privilege levels of an actor.  Higher values carry
// more privilege.
type Role int

const (
	RoleUnknown Role = iota
	RoleClient
	RoleStaff
	RoleAdmin
)

// ParseRole maps the role claim of an access token onto a Role.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLIENT":
		return RoleClient
	case "STAFF":
		return RoleStaff
	case "ADMIN":
		return RoleAdmin
	}
	return RoleUnknown
}

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleStaff:
		return "STAFF"
	case RoleAdmin:
		return "ADMIN"
	}
	return "UNKNOWN"
}

// Actor is the identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// AtLeast reports whether the actor holds role r or a higher one.
func (a Actor) AtLeast(r Role) bool { return a.Role >= r }
