package teams

import (
	"context"
	"errors"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/users"
)

// Resolver answers membership, role and permission questions for a user
// within one team. Negative answers are false or nil, never errors.
type Resolver struct {
	store   *Store
	catalog rbac.RolePermissionCatalog
	guard   string
	logger  *observability.Logger
}

// NewResolver creates a resolver reading memberships from db and role
// permissions from catalog
func NewResolver(db storage.Querier, catalog rbac.RolePermissionCatalog, logger *observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	guard := rbac.DefaultGuard
	if g, ok := catalog.(interface{ Guard() string }); ok {
		guard = g.Guard()
	}
	return &Resolver{
		store:   NewStore(db),
		catalog: catalog,
		guard:   guard,
		logger:  logger,
	}
}

// IsOwner reports whether user owns team
func (r *Resolver) IsOwner(user *users.User, team *Team) bool {
	if user == nil || team == nil || team.UserID == nil {
		return false
	}
	return *team.UserID == user.ID
}

// MembershipOf returns the membership row of user in team, or nil
func (r *Resolver) MembershipOf(ctx context.Context, user *users.User, team *Team) (*Membership, error) {
	if user == nil || team == nil {
		return nil, nil
	}
	m, err := r.store.GetMembership(ctx, team.ID, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// IsMember reports whether user owns team or has a membership row in it
func (r *Resolver) IsMember(ctx context.Context, user *users.User, team *Team) (bool, error) {
	if r.IsOwner(user, team) {
		return true, nil
	}
	m, err := r.MembershipOf(ctx, user, team)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// RoleOf returns the synthetic owner role for owners, the catalog role named
// by the membership for members, and nil otherwise. A role name missing from
// the catalog yields a role carrying the membership's own permissions.
func (r *Resolver) RoleOf(ctx context.Context, user *users.User, team *Team) (*rbac.Role, error) {
	if r.IsOwner(user, team) {
		return rbac.OwnerRole(r.guard), nil
	}
	m, err := r.MembershipOf(ctx, user, team)
	if err != nil || m == nil || m.Role == "" {
		return nil, err
	}

	role, err := r.catalog.FindRole(ctx, m.Role, &team.ID)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.WithFields(map[string]interface{}{
			"team_id": team.ID,
			"role":    m.Role,
		}).Debug("membership role not in catalog")
		return membershipRole(r.guard, m), nil
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

func membershipRole(guard string, m *Membership) *rbac.Role {
	role := &rbac.Role{Name: m.Role, GuardName: guard}
	for _, p := range m.Permissions {
		role.Permissions = append(role.Permissions, rbac.Permission{Name: p, GuardName: guard})
	}
	return role
}

// PermissionsOf returns the wildcard set for owners, the permissions of the
// membership role for members, and an empty set otherwise
func (r *Resolver) PermissionsOf(ctx context.Context, user *users.User, team *Team) (rbac.PermissionSet, error) {
	if r.IsOwner(user, team) {
		return rbac.NewPermissionSet(rbac.Wildcard), nil
	}
	m, err := r.MembershipOf(ctx, user, team)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Role == "" {
		return rbac.PermissionSet{}, nil
	}

	perms, err := r.catalog.RolePermissions(ctx, m.Role, &team.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return rbac.NewPermissionSet(m.Permissions...), nil
	}
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// HasPermission reports whether user may exercise permission in team
func (r *Resolver) HasPermission(ctx context.Context, user *users.User, team *Team, permission string) (bool, error) {
	if r.IsOwner(user, team) {
		return true, nil
	}
	perms, err := r.PermissionsOf(ctx, user, team)
	if err != nil {
		return false, err
	}
	return perms.Has(permission), nil
}

// HasTeamRole reports whether user holds roleName in team. Owners hold
// every role.
func (r *Resolver) HasTeamRole(ctx context.Context, user *users.User, team *Team, roleName string) (bool, error) {
	if r.IsOwner(user, team) {
		return true, nil
	}
	role, err := r.RoleOf(ctx, user, team)
	if err != nil || role == nil {
		return false, err
	}
	return role.Name == roleName, nil
}

// AllTeams lists the live teams user owns or belongs to
func (r *Resolver) AllTeams(ctx context.Context, user *users.User) ([]*Team, error) {
	if user == nil {
		return nil, nil
	}
	return r.store.AllTeams(ctx, user.ID)
}

// OwnedTeams lists the live teams user owns
func (r *Resolver) OwnedTeams(ctx context.Context, user *users.User) ([]*Team, error) {
	if user == nil {
		return nil, nil
	}
	return r.store.OwnedTeams(ctx, user.ID)
}

// PersonalTeam returns user's personal team, or nil
func (r *Resolver) PersonalTeam(ctx context.Context, user *users.User) (*Team, error) {
	if user == nil {
		return nil, nil
	}
	t, err := r.store.PersonalTeam(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return t, err
}
