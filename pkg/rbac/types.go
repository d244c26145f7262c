package rbac

import (
	"sort"
	"strings"
	"time"
)

// Wildcard grants every permission.
const Wildcard = "*"

// DefaultGuard is the guard used when none is configured
const DefaultGuard = "web"

// OwnerRoleName is the name of the synthetic role reported for team owners.
const OwnerRoleName = "owner"

// Permission is a named capability within a guard
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	GuardName string    `json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a named set of permissions. A nil TeamID makes the role global;
// otherwise it only applies inside that team.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	GuardName   string       `json:"guard_name"`
	TeamID      *int64       `json:"team_id,omitempty"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsGlobal reports whether the role applies to every team
func (r *Role) IsGlobal() bool {
	return r.TeamID == nil
}

// PermissionSet returns the role's permission names
func (r *Role) PermissionSet() PermissionSet {
	set := make(PermissionSet, len(r.Permissions))
	for _, p := range r.Permissions {
		set[p.Name] = struct{}{}
	}
	return set
}

// OwnerRole returns the synthetic role held by a team's owner
func OwnerRole(guard string) *Role {
	return &Role{
		Name:        OwnerRoleName,
		GuardName:   guard,
		Permissions: []Permission{{Name: Wildcard, GuardName: guard}},
	}
}

// PermissionSet is a set of permission names
type PermissionSet map[string]struct{}

// NewPermissionSet creates a set from names
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set grants permission. "*" grants everything and
// a trailing ".*" grants every permission under that prefix.
func (s PermissionSet) Has(permission string) bool {
	if len(s) == 0 || permission == "" {
		return false
	}
	if _, ok := s[Wildcard]; ok {
		return true
	}
	if _, ok := s[permission]; ok {
		return true
	}
	for granted := range s {
		if prefix, ok := strings.CutSuffix(granted, ".*"); ok && strings.HasPrefix(permission, prefix+".") {
			return true
		}
	}
	return false
}

// Union returns a new set with the members of both sets
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Names returns the sorted permission names
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
