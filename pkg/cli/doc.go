// Package cli implements teamctl, the batch administration tool for teams
// and tenants.
//
// # Overview
//
// Every command runs outside any request, so tenant scoping is bypassed
// (tenancy.BatchContext) unless a command narrows it explicitly. The
// commands share one App, built from the TENANTRY_* environment by
// OpenFromConfig.
//
// # Commands
//
// migrate: apply pending schema migrations
//
//	teamctl migrate
//
// seed-roles: install the built-in admin and editor roles, or a YAML seed
//
//	teamctl seed-roles -file roles.yaml -watch
//
// create-user: register a user with a personal team
//
//	teamctl create-user -name "Ada Lovelace" -email ada@example.com -password secret -tenant acme
//
// list-users: list users, optionally within one tenant
//
//	teamctl list-users -tenant acme
//
// purge-team: hard-delete a team with its memberships, invitations and
// team-scoped roles, or soft-delete it with -soft
//
//	teamctl purge-team -team 42
//
// switch-team: set a user's current team; the user must own or belong to it
//
//	teamctl switch-team -user 7 -team 42
//
// check-permission: print whether a user holds a permission in a team, and
// why
//
//	teamctl check-permission -user 7 -team 42 -permission update
//
// maintain: clear stale current teams and expire audit events on a cron
// schedule, serving /metrics and /health/{live,ready} meanwhile
//
//	teamctl maintain -schedule @hourly -audit-retention 2160h -addr :9090
//
// # Related Packages
//
//   - pkg/config: environment configuration
//   - pkg/teams, pkg/rbac, pkg/users, pkg/tenancy: the services commands call
//   - pkg/accounts, pkg/authz: registration and authorization decisions
package cli
