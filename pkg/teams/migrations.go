package teams

import "github.com/platinummonkey/tenantry/pkg/storage"

// Migrations creates the team, membership and invitation tables
var Migrations = []storage.Migration{
	{
		Component:   "teams",
		Version:     1,
		Description: "Create teams table",
		SQL: `
			CREATE TABLE IF NOT EXISTS teams (
				id {{serial}},
				user_id BIGINT,
				name VARCHAR(255) NOT NULL,
				personal_team BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				deleted_at TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_teams_user_id ON teams(user_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_teams_personal ON teams(user_id)
				WHERE personal_team = TRUE AND deleted_at IS NULL;
		`,
	},
	{
		Component:   "teams",
		Version:     2,
		Description: "Create team_user table",
		SQL: `
			CREATE TABLE IF NOT EXISTS team_user (
				team_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				role VARCHAR(255),
				permissions TEXT,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (team_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_team_user_user_id ON team_user(user_id);
		`,
	},
	{
		Component:   "teams",
		Version:     3,
		Description: "Create team_invitations table",
		SQL: `
			CREATE TABLE IF NOT EXISTS team_invitations (
				id {{serial}},
				team_id BIGINT NOT NULL,
				inviter_id BIGINT,
				email VARCHAR(255) NOT NULL,
				role VARCHAR(255),
				token VARCHAR(64) NOT NULL UNIQUE,
				accepted_at TIMESTAMP,
				declined_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_team_invitations_team_id ON team_invitations(team_id);
			CREATE INDEX IF NOT EXISTS idx_team_invitations_email ON team_invitations(email);
		`,
	},
}
