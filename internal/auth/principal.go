package auth

import "strings"

// Role is the coarse permission level attached to an account and its sessions.
type Role string

const (
	RoleUser       Role = "user"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole normalizes a stored role name. Unknown values fall back to RoleUser
// so a corrupted row can never escalate privileges.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleInstructor:
		return RoleInstructor
	default:
		return RoleUser
	}
}

func (r Role) String() string {
	return string(r)
}

// Principal is the verified caller identity decoded from the session token
// and confirmed against the session store.
type Principal struct {
	UserID    string
	Email     string
	Role      Role
	SessionID string
}
