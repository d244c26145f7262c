// Package teams implements team membership, team lifecycle and the
// current-team state of a user.
//
// # Ownership and membership
//
// A team has exactly one owner, stored in teams.user_id. The owner has no
// team_user row and holds every permission in the team. Other users join
// through a membership row naming a role; the role's permissions come from
// the rbac catalog, preferring a team-scoped role over a global one of the
// same name. When a role name has no catalog entry the membership's own
// permissions column is used instead.
//
// # Resolver
//
// Resolver answers questions only. "No" answers are false or nil values,
// never errors:
//
//	resolver := teams.NewResolver(db, catalog, logger)
//	ok, err := resolver.HasPermission(ctx, user, team, "update")
//
// # Current team
//
// A user's current team is Unset, Set or Stale. GetCurrentTeam is a pure read
// and returns nil for Unset and Stale. Initialize is the only implicit
// assignment and never overwrites a stored value. SwitchTeam refuses teams the
// user neither owns nor belongs to.
//
// # Lifecycle
//
// Service creates teams, manages members and invitations, and deletes teams.
// AcceptInvitation, RemoveMember, PurgeTeam, ForceDeleteTeam and
// TransferOwnership each run in a single transaction.
package teams
