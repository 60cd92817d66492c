package auth

import "slices"

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleHR         = "hr"
	RoleEmployee   = "employee"
)

// AdminRoles may act on other users' leave and allowance records.
var AdminRoles = []string{RoleSuperAdmin, RoleAdmin, RoleHR}

var AllRoles = []string{RoleSuperAdmin, RoleAdmin, RoleHR, RoleEmployee}

func IsAdminRole(role string) bool {
	return slices.Contains(AdminRoles, role)
}

func ValidRole(role string) bool {
	return slices.Contains(AllRoles, role)
}

// UserContext is the authenticated caller as seen by handlers.
type UserContext struct {
	UserID   string
	RoleName string
}

func (u UserContext) IsAdmin() bool {
	return IsAdminRole(u.RoleName)
}
