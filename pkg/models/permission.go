package models

import "strings"

// PermissionType is a single grantable capability on a project.
type PermissionType uint8

const (
	PermissionRead PermissionType = 1 << iota
	PermissionWrite
	PermissionExecute
	PermissionSchedule
	PermissionAdmin
)

var permissionNames = map[PermissionType]string{
	PermissionRead:     "READ",
	PermissionWrite:    "WRITE",
	PermissionExecute:  "EXECUTE",
	PermissionSchedule: "SCHEDULE",
	PermissionAdmin:    "ADMIN",
}

// permissionOrder fixes the rendering order of permission flags.
var permissionOrder = []PermissionType{
	PermissionAdmin,
	PermissionRead,
	PermissionWrite,
	PermissionExecute,
	PermissionSchedule,
}

func (t PermissionType) String() string {
	if name, ok := permissionNames[t]; ok {
		return name
	}

	return "UNKNOWN"
}

// ParsePermissionType resolves a permission name such as "READ" or "admin".
func ParsePermissionType(name string) (PermissionType, bool) {
	upper := strings.ToUpper(name)
	for t, n := range permissionNames {
		if n == upper {
			return t, true
		}
	}

	return 0, false
}

// Permission is an immutable set of permission flags. The zero value is the
// empty permission. All operations return a new value.
type Permission uint8

// NewPermission builds a permission from the given flags.
func NewPermission(types ...PermissionType) Permission {
	var p Permission
	for _, t := range types {
		p |= Permission(t)
	}

	return p
}

// With returns a copy with the given flag set.
func (p Permission) With(t PermissionType) Permission {
	return p | Permission(t)
}

// Without returns a copy with the given flag cleared.
func (p Permission) Without(t PermissionType) Permission {
	return p &^ Permission(t)
}

// Union returns the bit-wise union of both permissions.
func (p Permission) Union(other Permission) Permission {
	return p | other
}

// IsSet reports whether the flag itself is set, ignoring ADMIN elevation.
func (p Permission) IsSet(t PermissionType) bool {
	return p&Permission(t) != 0
}

// Satisfies reports whether the permission grants the requested capability.
// ADMIN satisfies every request.
func (p Permission) Satisfies(t PermissionType) bool {
	return p.IsSet(t) || p.IsSet(PermissionAdmin)
}

// IsEmpty reports whether no flag is set.
func (p Permission) IsEmpty() bool {
	return p == 0
}

// Types returns the individually set flags in rendering order.
func (p Permission) Types() []PermissionType {
	types := make([]PermissionType, 0, len(permissionOrder))

	for _, t := range permissionOrder {
		if p.IsSet(t) {
			types = append(types, t)
		}
	}

	return types
}

// Names returns the set flags as strings, for API payloads.
func (p Permission) Names() []string {
	types := p.Types()

	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}

	return names
}

func (p Permission) String() string {
	return strings.Join(p.Names(), ",")
}
