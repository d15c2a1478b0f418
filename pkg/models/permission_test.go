package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPermission(t *testing.T) {
	perm := NewPermission(PermissionRead, PermissionWrite)

	assert.True(t, perm.IsSet(PermissionRead))
	assert.True(t, perm.IsSet(PermissionWrite))
	assert.False(t, perm.IsSet(PermissionExecute))
	assert.False(t, perm.IsEmpty())
}

func TestPermission_Immutability(t *testing.T) {
	base := NewPermission(PermissionRead)

	withWrite := base.With(PermissionWrite)
	assert.True(t, withWrite.IsSet(PermissionWrite))
	assert.False(t, base.IsSet(PermissionWrite), "With must not mutate the receiver")

	withoutRead := base.Without(PermissionRead)
	assert.True(t, withoutRead.IsEmpty())
	assert.True(t, base.IsSet(PermissionRead), "Without must not mutate the receiver")
}

func TestPermission_Union(t *testing.T) {
	read := NewPermission(PermissionRead)
	write := NewPermission(PermissionWrite)

	union := read.Union(write)

	assert.True(t, union.IsSet(PermissionRead))
	assert.True(t, union.IsSet(PermissionWrite))
	assert.False(t, read.IsSet(PermissionWrite))
	assert.False(t, write.IsSet(PermissionRead))
}

func TestPermission_SatisfiesWithAdmin(t *testing.T) {
	admin := NewPermission(PermissionAdmin)

	// Admin satisfies every permission check without its own bit set.
	assert.True(t, admin.Satisfies(PermissionRead))
	assert.True(t, admin.Satisfies(PermissionWrite))
	assert.True(t, admin.Satisfies(PermissionExecute))
	assert.True(t, admin.Satisfies(PermissionSchedule))
	assert.False(t, admin.IsSet(PermissionRead))
}

func TestPermission_SatisfiesWithoutAdmin(t *testing.T) {
	perm := NewPermission(PermissionRead)

	assert.True(t, perm.Satisfies(PermissionRead))
	assert.False(t, perm.Satisfies(PermissionWrite))
}

func TestParsePermissionType(t *testing.T) {
	tests := []struct {
		name     string
		expected PermissionType
		ok       bool
	}{
		{"READ", PermissionRead, true},
		{"read", PermissionRead, true},
		{"Admin", PermissionAdmin, true},
		{"EXECUTE", PermissionExecute, true},
		{"SCHEDULE", PermissionSchedule, true},
		{"bogus", 0, false},
	}

	for _, tc := range tests {
		parsed, ok := ParsePermissionType(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.expected, parsed, tc.name)
	}
}

func TestPermission_Names(t *testing.T) {
	perm := NewPermission(PermissionWrite, PermissionRead)

	assert.Equal(t, []string{"READ", "WRITE"}, perm.Names())
}
