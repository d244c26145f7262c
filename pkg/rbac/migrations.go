package rbac

import "github.com/platinummonkey/tenantry/pkg/storage"

// globalTeam is stored in assignment tables for assignments that are not
// bound to a team, so the composite primary keys stay NOT NULL.
const globalTeam int64 = 0

// Migrations creates the role and permission catalog tables.
var Migrations = []storage.Migration{
	{
		Component:   "rbac",
		Version:     1,
		Description: "Create permissions table",
		SQL: `
			CREATE TABLE IF NOT EXISTS permissions (
				id {{serial}},
				name VARCHAR(255) NOT NULL,
				guard_name VARCHAR(64) NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				UNIQUE (name, guard_name)
			);
		`,
	},
	{
		Component:   "rbac",
		Version:     2,
		Description: "Create roles table",
		SQL: `
			CREATE TABLE IF NOT EXISTS roles (
				id {{serial}},
				name VARCHAR(255) NOT NULL,
				guard_name VARCHAR(64) NOT NULL,
				team_id BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				UNIQUE (team_id, name, guard_name)
			);
		`,
	},
	{
		Component:   "rbac",
		Version:     3,
		Description: "Create role_has_permissions table",
		SQL: `
			CREATE TABLE IF NOT EXISTS role_has_permissions (
				permission_id BIGINT NOT NULL,
				role_id BIGINT NOT NULL,
				PRIMARY KEY (permission_id, role_id)
			);

			CREATE INDEX IF NOT EXISTS idx_role_has_permissions_role_id ON role_has_permissions(role_id);
		`,
	},
	{
		Component:   "rbac",
		Version:     4,
		Description: "Create model assignment tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS model_has_roles (
				role_id BIGINT NOT NULL,
				model_type VARCHAR(64) NOT NULL,
				model_id BIGINT NOT NULL,
				team_id BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (team_id, role_id, model_id, model_type)
			);

			CREATE TABLE IF NOT EXISTS model_has_permissions (
				permission_id BIGINT NOT NULL,
				model_type VARCHAR(64) NOT NULL,
				model_id BIGINT NOT NULL,
				team_id BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (team_id, permission_id, model_id, model_type)
			);

			CREATE INDEX IF NOT EXISTS idx_model_has_roles_model ON model_has_roles(model_id, model_type);
			CREATE INDEX IF NOT EXISTS idx_model_has_permissions_model ON model_has_permissions(model_id, model_type);
		`,
	},
}
