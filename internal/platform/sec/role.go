// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Platform operators; may manage other accounts
	RoleAdmin UserRole = "ADMIN"

	// Businesses listing services on the marketplace
	RoleBusinessOwner UserRole = "BUSINESS_OWNER"

	// Default role for people booking services
	RoleCustomer UserRole = "CUSTOMER"
)

// Roles lists every known role, lowest privilege first.
func Roles() []UserRole {
	return []UserRole{RoleCustomer, RoleBusinessOwner, RoleAdmin}
}

// SelfServiceRoles lists the roles open to public registration.
func SelfServiceRoles() []UserRole {
	return []UserRole{RoleCustomer, RoleBusinessOwner}
}

// # Role Hierarchy

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.Valid() && r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-30) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 30
	case RoleBusinessOwner:
		return 20
	case RoleCustomer:
		return 10
	default:
		return 0
	}
}
