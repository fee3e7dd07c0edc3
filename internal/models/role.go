package models

import (
	"strings"

	"github.com/diewo77/microloan/gate"
)

// Role is the authorization level assigned to a user by the backend.
type Role = gate.Role

const (
	RoleAnonymous Role = gate.RoleAnonymous
	RoleUser      Role = "user"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes a backend role value. Anything unknown, including the
// empty string and legacy values such as "borrower", maps to RoleUser.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleManager:
		return RoleManager
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Privileged reports whether role reaches any moderation screen.
func Privileged(r Role) bool { return r == RoleManager || r == RoleAdmin }
