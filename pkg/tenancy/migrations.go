package tenancy

import "github.com/platinummonkey/tenantry/pkg/storage"

// Migrations creates the tenant tables.
var Migrations = []storage.Migration{
	{
		Component:   "tenancy",
		Version:     1,
		Description: "Create tenants table",
		SQL: `
			CREATE TABLE IF NOT EXISTS tenants (
				id {{serial}},
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);
		`,
	},
	{
		Component:   "tenancy",
		Version:     2,
		Description: "Create tenant_user table",
		SQL: `
			CREATE TABLE IF NOT EXISTS tenant_user (
				tenant_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				PRIMARY KEY (tenant_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_tenant_user_user_id ON tenant_user(user_id);
		`,
	},
}
