package auth

import "fmt"

// Role is the closed set of dashboard roles, resolved once at login.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleLeader      Role = "leader"
	RoleEngineering Role = "engineering"
)

// ParseRole validates s as a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleLeader, RoleEngineering:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// HomePath is the dashboard a role lands on after login.
func HomePath(r Role) string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleLeader:
		return "/leader"
	default:
		return "/engineering"
	}
}
