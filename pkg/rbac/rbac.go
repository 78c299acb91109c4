package rbac

import "sort"

type Role string

const (
	RoleStudent      Role = "student"
	RolePointManager Role = "point_manager"
	RoleAnnouncer    Role = "announcer"
	RoleAdmin        Role = "admin"
)

type Permission string

const (
	PermissionViewMarket        Permission = "view_market"
	PermissionPlaceOrder        Permission = "place_order"
	PermissionTransferPoints    Permission = "transfer_points"
	PermissionGivePoints        Permission = "give_points"
	PermissionDeductPoints      Permission = "deduct_points"
	PermissionPostAnnouncements Permission = "post_announcements"
	PermissionManageUsers       Permission = "manage_users"
	PermissionManageMarket      Permission = "manage_market"
	PermissionSystemAdmin       Permission = "system_admin"
)

// RolePermissionMatrix is the static role grant table. The remote RBAC
// endpoint is authoritative; this table only backs fallback classification
// and local permission checks.
var RolePermissionMatrix = map[Role][]Permission{
	RoleStudent: {
		PermissionViewMarket,
		PermissionPlaceOrder,
		PermissionTransferPoints,
	},
	RolePointManager: {
		PermissionViewMarket,
		PermissionPlaceOrder,
		PermissionTransferPoints,
		PermissionGivePoints,
		PermissionDeductPoints,
	},
	RoleAnnouncer: {
		PermissionViewMarket,
		PermissionPlaceOrder,
		PermissionTransferPoints,
		PermissionPostAnnouncements,
	},
	RoleAdmin: {
		PermissionViewMarket,
		PermissionPlaceOrder,
		PermissionTransferPoints,
		PermissionGivePoints,
		PermissionDeductPoints,
		PermissionPostAnnouncements,
		PermissionManageUsers,
		PermissionManageMarket,
		PermissionSystemAdmin,
	},
}

type PermissionSet map[Permission]struct{}

func NewPermissionSet(permissions ...Permission) PermissionSet {
	set := make(PermissionSet, len(permissions))
	for _, permission := range permissions {
		set[permission] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(permission Permission) bool {
	_, ok := s[permission]
	return ok
}

func (s PermissionSet) HasAll(permissions ...Permission) bool {
	for _, permission := range permissions {
		if !s.Has(permission) {
			return false
		}
	}
	return true
}

func (s PermissionSet) HasAny(permissions ...Permission) bool {
	for _, permission := range permissions {
		if s.Has(permission) {
			return true
		}
	}
	return false
}

// Slice returns the set's members sorted, so wire payloads and logs are stable.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for permission := range s {
		out = append(out, permission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) Strings() []string {
	permissions := s.Slice()
	out := make([]string, len(permissions))
	for i, permission := range permissions {
		out[i] = string(permission)
	}
	return out
}

// DefaultPermissions returns the static grant set for a role. Unknown roles
// get an empty set rather than an error so callers can treat the result as a
// plain capability check.
func DefaultPermissions(role Role) PermissionSet {
	return NewPermissionSet(RolePermissionMatrix[role]...)
}

func IsValidRole(role Role) bool {
	_, ok := RolePermissionMatrix[role]
	return ok
}
