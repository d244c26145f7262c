package users

import "github.com/platinummonkey/tenantry/pkg/storage"

// Migrations creates the users table.
var Migrations = []storage.Migration{
	{
		Component:   "users",
		Version:     1,
		Description: "Create users table",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id {{serial}},
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				password VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				current_team_id BIGINT,
				tenant_id BIGINT,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				deleted_at TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_users_current_team_id ON users(current_team_id);
			CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
		`,
	},
}
