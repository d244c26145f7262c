package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

// modelTypeUser is the model_type recorded for user assignments
const modelTypeUser = "user"

// ErrRoleExists is returned when a role name is already used in the same scope
var ErrRoleExists = errors.New("role already exists")

// Store handles role and permission persistence. It works on a pool or
// inside a transaction.
type Store struct {
	db storage.Querier
}

// NewStore creates a new RBAC store
func NewStore(db storage.Querier) *Store {
	return &Store{db: db}
}

func teamKey(teamID *int64) int64 {
	if teamID == nil {
		return globalTeam
	}
	return *teamID
}

func teamRef(key int64) *int64 {
	if key == globalTeam {
		return nil
	}
	return &key
}

// FindOrCreatePermission returns the named permission, creating it if needed
func (s *Store) FindOrCreatePermission(ctx context.Context, name, guard string) (*Permission, error) {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO permissions (name, guard_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, guard_name) DO NOTHING
	`, name, guard, now, now); err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}
	return s.GetPermission(ctx, name, guard)
}

// GetPermission retrieves a permission by name
func (s *Store) GetPermission(ctx context.Context, name, guard string) (*Permission, error) {
	var p Permission
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, guard_name, created_at, updated_at
		FROM permissions
		WHERE name = $1 AND guard_name = $2
	`, name, guard).Scan(&p.ID, &p.Name, &p.GuardName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("permission %s: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return &p, nil
}

// ListPermissions lists every permission of a guard
func (s *Store) ListPermissions(ctx context.Context, guard string) ([]Permission, error) {
	return s.queryPermissions(ctx, `
		SELECT id, name, guard_name, created_at, updated_at
		FROM permissions
		WHERE guard_name = $1
		ORDER BY name
	`, guard)
}

func (s *Store) queryPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.GuardName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreateRole inserts a role. Permissions on the role are not persisted here.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if role == nil || role.Name == "" {
		return fmt.Errorf("role name is required: %w", storage.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, guard_name, team_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, role.Name, role.GuardName, teamKey(role.TeamID), now, now).Scan(&role.ID)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("failed to create role %s: %w", role.Name, ErrRoleExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	role.CreatedAt, role.UpdatedAt = now, now
	return nil
}

func scanRole(row interface{ Scan(...any) error }) (*Role, error) {
	var r Role
	var team int64
	if err := row.Scan(&r.ID, &r.Name, &r.GuardName, &team, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.TeamID = teamRef(team)
	return &r, nil
}

// GetRole retrieves a role by ID with its permissions
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		SELECT id, name, guard_name, team_id, created_at, updated_at
		FROM roles
		WHERE id = $1
	`, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %d: %w", roleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if role.Permissions, err = s.RolePermissions(ctx, role.ID); err != nil {
		return nil, err
	}
	return role, nil
}

// FindRole looks up a role by name. With a team, a role defined for that
// team wins over a global role of the same name.
func (s *Store) FindRole(ctx context.Context, name, guard string, teamID *int64) (*Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		SELECT id, name, guard_name, team_id, created_at, updated_at
		FROM roles
		WHERE name = $1 AND guard_name = $2 AND team_id IN ($3, 0)
		ORDER BY team_id DESC
		LIMIT 1
	`, name, guard, teamKey(teamID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %s: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}
	if role.Permissions, err = s.RolePermissions(ctx, role.ID); err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles lists global roles plus the roles defined for teamID
func (s *Store) ListRoles(ctx context.Context, guard string, teamID *int64) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, guard_name, team_id, created_at, updated_at
		FROM roles
		WHERE guard_name = $1 AND team_id IN ($2, 0)
		ORDER BY team_id, name
	`, guard, teamKey(teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	return roles, s.loadPermissions(ctx, roles)
}

func collectRoles(rows *sql.Rows) ([]*Role, error) {
	defer rows.Close()
	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) loadPermissions(ctx context.Context, roles []*Role) error {
	for _, role := range roles {
		perms, err := s.RolePermissions(ctx, role.ID)
		if err != nil {
			return err
		}
		role.Permissions = perms
	}
	return nil
}

// DeleteRole removes a role with its grants and assignments
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	for _, stmt := range []string{
		`DELETE FROM role_has_permissions WHERE role_id = $1`,
		`DELETE FROM model_has_roles WHERE role_id = $1`,
		`DELETE FROM roles WHERE id = $1`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, roleID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
	}
	return nil
}

// RolePermissions lists the permissions granted to a role
func (s *Store) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.queryPermissions(ctx, `
		SELECT p.id, p.name, p.guard_name, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_has_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name
	`, roleID)
}

// AttachPermission grants a permission to a role
func (s *Store) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO role_has_permissions (permission_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (permission_id, role_id) DO NOTHING
	`, permissionID, roleID); err != nil {
		return fmt.Errorf("failed to attach permission: %w", err)
	}
	return nil
}

// DetachPermission revokes a permission from a role
func (s *Store) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM role_has_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID,
	); err != nil {
		return fmt.Errorf("failed to detach permission: %w", err)
	}
	return nil
}

// DetachAllPermissions revokes every permission of a role
func (s *Store) DetachAllPermissions(ctx context.Context, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM role_has_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to detach permissions: %w", err)
	}
	return nil
}

// AssignRole assigns a role to a user, globally when teamID is nil
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64, teamID *int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO model_has_roles (role_id, model_type, model_id, team_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, role_id, model_id, model_type) DO NOTHING
	`, roleID, modelTypeUser, userID, teamKey(teamID)); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RemoveRole removes a role assignment from a user
func (s *Store) RemoveRole(ctx context.Context, userID, roleID int64, teamID *int64) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM model_has_roles
		WHERE role_id = $1 AND model_type = $2 AND model_id = $3 AND team_id = $4
	`, roleID, modelTypeUser, userID, teamKey(teamID)); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// UserRoles lists the roles assigned to a user that apply in teamID. Global
// assignments apply in every team.
func (s *Store) UserRoles(ctx context.Context, userID int64, guard string, teamID *int64) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.guard_name, r.team_id, r.created_at, r.updated_at
		FROM roles r
		JOIN model_has_roles mr ON mr.role_id = r.id
		WHERE mr.model_type = $1 AND mr.model_id = $2 AND r.guard_name = $3 AND mr.team_id IN ($4, 0)
		ORDER BY r.name
	`, modelTypeUser, userID, guard, teamKey(teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	return roles, s.loadPermissions(ctx, roles)
}

// GrantToUser gives a permission directly to a user
func (s *Store) GrantToUser(ctx context.Context, userID, permissionID int64, teamID *int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO model_has_permissions (permission_id, model_type, model_id, team_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, permission_id, model_id, model_type) DO NOTHING
	`, permissionID, modelTypeUser, userID, teamKey(teamID)); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

// RevokeFromUser removes a direct permission from a user
func (s *Store) RevokeFromUser(ctx context.Context, userID, permissionID int64, teamID *int64) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM model_has_permissions
		WHERE permission_id = $1 AND model_type = $2 AND model_id = $3 AND team_id = $4
	`, permissionID, modelTypeUser, userID, teamKey(teamID)); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}

// UserDirectPermissions lists permissions granted directly to a user that
// apply in teamID
func (s *Store) UserDirectPermissions(ctx context.Context, userID int64, guard string, teamID *int64) ([]Permission, error) {
	return s.queryPermissions(ctx, `
		SELECT p.id, p.name, p.guard_name, p.created_at, p.updated_at
		FROM permissions p
		JOIN model_has_permissions mp ON mp.permission_id = p.id
		WHERE mp.model_type = $1 AND mp.model_id = $2 AND p.guard_name = $3 AND mp.team_id IN ($4, 0)
		ORDER BY p.name
	`, modelTypeUser, userID, guard, teamKey(teamID))
}

// DeleteUserAssignments removes every role and permission assignment of a user
func (s *Store) DeleteUserAssignments(ctx context.Context, userID int64) error {
	for _, stmt := range []string{
		`DELETE FROM model_has_roles WHERE model_type = $1 AND model_id = $2`,
		`DELETE FROM model_has_permissions WHERE model_type = $1 AND model_id = $2`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, modelTypeUser, userID); err != nil {
			return fmt.Errorf("failed to delete user assignments: %w", err)
		}
	}
	return nil
}

// DeleteTeamScope removes roles defined for a team and every assignment
// made within it
func (s *Store) DeleteTeamScope(ctx context.Context, teamID int64) error {
	if teamID == globalTeam {
		return fmt.Errorf("team id is required: %w", storage.ErrInvalidArgument)
	}
	for _, stmt := range []string{
		`DELETE FROM role_has_permissions WHERE role_id IN (SELECT id FROM roles WHERE team_id = $1)`,
		`DELETE FROM model_has_roles WHERE team_id = $1 OR role_id IN (SELECT id FROM roles WHERE team_id = $1)`,
		`DELETE FROM model_has_permissions WHERE team_id = $1`,
		`DELETE FROM roles WHERE team_id = $1`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, teamID); err != nil {
			return fmt.Errorf("failed to delete team roles: %w", err)
		}
	}
	return nil
}
