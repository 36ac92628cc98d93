package auth

import "time"

// Role is supplied by the identity collaborator for every call.
type Role string

const (
	RoleManager   Role = "manager"
	RoleCandidate Role = "candidate"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleCandidate, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	UserID int64 `json:"userId"`
	Role   Role  `json:"role"`
}

// Is reports whether the actor holds one of the roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Config drives token validation.
type Config struct {
	Secret   string
	TokenTTL time.Duration
}

// Claims are extracted from the JWT token.
type Claims struct {
	Actor     Actor
	ExpiresAt time.Time
}
