package domain

// Role is the authorization role assigned to a user. The platform uses a
// closed set of roles: every user is either a regular user or an admin.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// DefaultRole is assigned at signup when no role is requested.
const DefaultRole = RoleUser

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// AllowedRoles returns the closed set of roles accepted by the
// permission evaluator.
func AllowedRoles() []Role {
	return []Role{RoleAdmin, RoleUser}
}
