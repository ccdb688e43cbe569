// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// Role represents the authorization level the identity endpoint granted to an account.
type Role string

const (
	// Platform operator. Sees every module and bypasses client-type rules.
	RoleSuperAdmin Role = "super_admin"

	// Account administrator. Eligible for the company context switch.
	RoleAdmin Role = "admin"

	// Manages day-to-day operations inside a module
	RoleManager Role = "manager"

	// Default role for standard registered users
	RoleUser Role = "user"

	// Read-only access
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.level() > 0
}

// IsSuperAdmin reports whether r is the platform operator role.
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r Role) level() int {

	// Linear scale (10-50) allows for future intermediate roles
	switch r {
	case RoleSuperAdmin:
		return 50
	case RoleAdmin:
		return 40
	case RoleManager:
		return 30
	case RoleUser:
		return 20
	case RoleViewer:
		return 10
	default:
		return 0
	}
}
