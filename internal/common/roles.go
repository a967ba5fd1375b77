package common

// Roles recognized by the application. Authorization is role-gated only;
// there is no per-resource permission model.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsValidRole reports whether s is a known role.
func IsValidRole(s string) bool {
	return s == RoleUser || s == RoleAdmin
}
