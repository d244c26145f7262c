package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionSet_Has(t *testing.T) {
	tests := []struct {
		name       string
		set        PermissionSet
		permission string
		want       bool
	}{
		{"exact", NewPermissionSet("read", "update"), "read", true},
		{"missing", NewPermissionSet("read"), "delete", false},
		{"wildcard", NewPermissionSet(Wildcard), "anything", true},
		{"prefix wildcard", NewPermissionSet("team.*"), "team.invite", true},
		{"prefix wildcard does not match sibling", NewPermissionSet("team.*"), "teams.invite", false},
		{"empty set", PermissionSet{}, "read", false},
		{"nil set", nil, "read", false},
		{"empty permission", NewPermissionSet(Wildcard), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.set.Has(tt.permission))
		})
	}
}

func TestPermissionSet_UnionAndNames(t *testing.T) {
	a := NewPermissionSet("read", " ", "update")
	b := NewPermissionSet("delete", "read")

	assert.Equal(t, []string{"read", "update"}, a.Names())
	assert.Equal(t, []string{"delete", "read", "update"}, a.Union(b).Names())
	assert.Len(t, a, 2, "union must not modify the receiver")
}

func TestOwnerRole(t *testing.T) {
	role := OwnerRole("web")
	assert.Equal(t, OwnerRoleName, role.Name)
	assert.True(t, role.IsGlobal())
	assert.True(t, role.PermissionSet().Has("anything"))
}
