package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/storage"
)

// RolePermissionCatalog answers role and permission questions for users
// and named roles. Membership resolution depends only on this interface.
type RolePermissionCatalog interface {
	// FindRole resolves a role name, preferring a role defined for teamID.
	FindRole(ctx context.Context, name string, teamID *int64) (*Role, error)
	// RolePermissions returns the permissions of a named role.
	RolePermissions(ctx context.Context, name string, teamID *int64) (PermissionSet, error)
	// UserPermissions returns the permissions a user holds through directly
	// assigned roles and direct grants.
	UserPermissions(ctx context.Context, userID int64, teamID *int64) (PermissionSet, error)
	HasRole(ctx context.Context, userID int64, role string, teamID *int64) (bool, error)
	HasPermissionTo(ctx context.Context, userID int64, permission string, teamID *int64) (bool, error)
}

var _ RolePermissionCatalog = (*Catalog)(nil)

// Catalog is the database-backed role and permission catalog
type Catalog struct {
	db     storage.Querier
	store  *Store
	guard  string
	cache  PermissionCache
	logger *observability.Logger
}

// Option configures a Catalog
type Option func(*Catalog)

// WithGuard sets the guard roles and permissions are looked up in
func WithGuard(guard string) Option {
	return func(c *Catalog) {
		if guard != "" {
			c.guard = guard
		}
	}
}

// WithCache caches resolved permission sets
func WithCache(cache PermissionCache) Option {
	return func(c *Catalog) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCatalog creates a catalog over db
func NewCatalog(db storage.Querier, opts ...Option) *Catalog {
	c := &Catalog{
		db:     db,
		store:  NewStore(db),
		guard:  DefaultGuard,
		cache:  NopCache{},
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Guard returns the catalog's guard name
func (c *Catalog) Guard() string {
	return c.guard
}

// Store returns the underlying store
func (c *Catalog) Store() *Store {
	return c.store
}

// inTx runs fn in a transaction when the catalog owns a pool, otherwise on
// the querier it was given.
func (c *Catalog) inTx(ctx context.Context, fn func(*Store) error) error {
	db, ok := c.db.(*storage.DB)
	if !ok {
		return fn(c.store)
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(NewStore(tx))
	})
}

func (c *Catalog) invalidate(ctx context.Context) {
	c.cache.Flush(ctx)
}

func roleCacheKey(guard, name string, teamID *int64) string {
	return fmt.Sprintf("role:%s:%d:%s", guard, teamKey(teamID), name)
}

func userCacheKey(guard string, userID int64, teamID *int64) string {
	return fmt.Sprintf("user:%s:%d:%d", guard, teamKey(teamID), userID)
}

// CreatePermission returns the named permission, creating it if needed
func (c *Catalog) CreatePermission(ctx context.Context, name string) (*Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("permission name is required: %w", storage.ErrInvalidArgument)
	}
	return c.store.FindOrCreatePermission(ctx, name, c.guard)
}

// CreateRole creates a role, global when teamID is nil, granting the given
// permissions. Missing permissions are created.
func (c *Catalog) CreateRole(ctx context.Context, name string, teamID *int64, permissions ...string) (*Role, error) {
	role := &Role{Name: strings.TrimSpace(name), GuardName: c.guard, TeamID: teamID}
	err := c.inTx(ctx, func(store *Store) error {
		if err := store.CreateRole(ctx, role); err != nil {
			return err
		}
		perms, err := attach(ctx, store, role.ID, c.guard, permissions)
		role.Permissions = perms
		return err
	})
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	c.logger.WithFields(map[string]interface{}{
		"role":    role.Name,
		"team_id": teamKey(teamID),
	}).Info("role created")
	return role, nil
}

func attach(ctx context.Context, store *Store, roleID int64, guard string, names []string) ([]Permission, error) {
	var attached []Permission
	for _, name := range NewPermissionSet(names...).Names() {
		perm, err := store.FindOrCreatePermission(ctx, name, guard)
		if err != nil {
			return nil, err
		}
		if err := store.AttachPermission(ctx, roleID, perm.ID); err != nil {
			return nil, err
		}
		attached = append(attached, *perm)
	}
	return attached, nil
}

// FindRole resolves a role by name
func (c *Catalog) FindRole(ctx context.Context, name string, teamID *int64) (*Role, error) {
	return c.store.FindRole(ctx, name, c.guard, teamID)
}

// ListRoles lists the global roles and the roles defined for teamID
func (c *Catalog) ListRoles(ctx context.Context, teamID *int64) ([]*Role, error) {
	return c.store.ListRoles(ctx, c.guard, teamID)
}

// DeleteRole deletes the named role in the given scope
func (c *Catalog) DeleteRole(ctx context.Context, name string, teamID *int64) error {
	role, err := c.FindRole(ctx, name, teamID)
	if err != nil {
		return err
	}
	if err := c.inTx(ctx, func(store *Store) error {
		return store.DeleteRole(ctx, role.ID)
	}); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// RolePermissions returns the permission set of a named role
func (c *Catalog) RolePermissions(ctx context.Context, name string, teamID *int64) (PermissionSet, error) {
	key := roleCacheKey(c.guard, name, teamID)
	if perms, ok := c.cache.Get(ctx, key); ok {
		return perms, nil
	}
	role, err := c.FindRole(ctx, name, teamID)
	if err != nil {
		return nil, err
	}
	perms := role.PermissionSet()
	c.cache.Set(ctx, key, perms)
	return perms, nil
}

// GivePermissionTo grants permissions to a role
func (c *Catalog) GivePermissionTo(ctx context.Context, roleName string, teamID *int64, permissions ...string) error {
	role, err := c.FindRole(ctx, roleName, teamID)
	if err != nil {
		return err
	}
	if err := c.inTx(ctx, func(store *Store) error {
		_, err := attach(ctx, store, role.ID, c.guard, permissions)
		return err
	}); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// RevokePermissionTo revokes permissions from a role. Unknown permissions
// are ignored.
func (c *Catalog) RevokePermissionTo(ctx context.Context, roleName string, teamID *int64, permissions ...string) error {
	role, err := c.FindRole(ctx, roleName, teamID)
	if err != nil {
		return err
	}
	granted := make(map[string]int64, len(role.Permissions))
	for _, p := range role.Permissions {
		granted[p.Name] = p.ID
	}
	if err := c.inTx(ctx, func(store *Store) error {
		for _, name := range permissions {
			id, ok := granted[name]
			if !ok {
				continue
			}
			if err := store.DetachPermission(ctx, role.ID, id); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// SyncPermissions replaces the permissions of a role
func (c *Catalog) SyncPermissions(ctx context.Context, roleName string, teamID *int64, permissions ...string) error {
	role, err := c.FindRole(ctx, roleName, teamID)
	if err != nil {
		return err
	}
	if err := c.inTx(ctx, func(store *Store) error {
		if err := store.DetachAllPermissions(ctx, role.ID); err != nil {
			return err
		}
		_, err := attach(ctx, store, role.ID, c.guard, permissions)
		return err
	}); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// AssignRole assigns a named role to a user within teamID, or globally
func (c *Catalog) AssignRole(ctx context.Context, userID int64, roleName string, teamID *int64) error {
	role, err := c.FindRole(ctx, roleName, teamID)
	if err != nil {
		return err
	}
	if err := c.store.AssignRole(ctx, userID, role.ID, teamID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// RemoveRole removes a named role from a user
func (c *Catalog) RemoveRole(ctx context.Context, userID int64, roleName string, teamID *int64) error {
	role, err := c.FindRole(ctx, roleName, teamID)
	if err != nil {
		return err
	}
	if err := c.store.RemoveRole(ctx, userID, role.ID, teamID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// HasRole reports whether the user was assigned the named role
func (c *Catalog) HasRole(ctx context.Context, userID int64, roleName string, teamID *int64) (bool, error) {
	roles, err := c.store.UserRoles(ctx, userID, c.guard, teamID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// UserRoles lists the roles assigned to a user that apply in teamID
func (c *Catalog) UserRoles(ctx context.Context, userID int64, teamID *int64) ([]*Role, error) {
	return c.store.UserRoles(ctx, userID, c.guard, teamID)
}

// GivePermissionToUser grants a permission directly to a user
func (c *Catalog) GivePermissionToUser(ctx context.Context, userID int64, permission string, teamID *int64) error {
	perm, err := c.CreatePermission(ctx, permission)
	if err != nil {
		return err
	}
	if err := c.store.GrantToUser(ctx, userID, perm.ID, teamID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// RevokePermissionFromUser removes a direct grant from a user
func (c *Catalog) RevokePermissionFromUser(ctx context.Context, userID int64, permission string, teamID *int64) error {
	perm, err := c.store.GetPermission(ctx, permission, c.guard)
	if err != nil {
		return err
	}
	if err := c.store.RevokeFromUser(ctx, userID, perm.ID, teamID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// UserPermissions returns the union of a user's direct grants and the
// permissions of the user's assigned roles
func (c *Catalog) UserPermissions(ctx context.Context, userID int64, teamID *int64) (PermissionSet, error) {
	key := userCacheKey(c.guard, userID, teamID)
	if perms, ok := c.cache.Get(ctx, key); ok {
		return perms, nil
	}

	direct, err := c.store.UserDirectPermissions(ctx, userID, c.guard, teamID)
	if err != nil {
		return nil, err
	}
	roles, err := c.store.UserRoles(ctx, userID, c.guard, teamID)
	if err != nil {
		return nil, err
	}

	perms := make(PermissionSet)
	for _, p := range direct {
		perms[p.Name] = struct{}{}
	}
	for _, r := range roles {
		perms = perms.Union(r.PermissionSet())
	}
	c.cache.Set(ctx, key, perms)
	return perms, nil
}

// HasPermissionTo reports whether the user holds permission through roles
// or direct grants
func (c *Catalog) HasPermissionTo(ctx context.Context, userID int64, permission string, teamID *int64) (bool, error) {
	perms, err := c.UserPermissions(ctx, userID, teamID)
	if err != nil {
		return false, err
	}
	return perms.Has(permission), nil
}

// ForgetUser removes every assignment of a user
func (c *Catalog) ForgetUser(ctx context.Context, userID int64) error {
	if err := c.store.DeleteUserAssignments(ctx, userID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// ForgetTeam removes the roles and assignments scoped to a team
func (c *Catalog) ForgetTeam(ctx context.Context, teamID int64) error {
	if err := c.inTx(ctx, func(store *Store) error {
		return store.DeleteTeamScope(ctx, teamID)
	}); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// WithQuerier returns a catalog sharing configuration and cache but running
// on q, typically a transaction
func (c *Catalog) WithQuerier(q storage.Querier) *Catalog {
	clone := *c
	clone.db = q
	clone.store = NewStore(q)
	return &clone
}
