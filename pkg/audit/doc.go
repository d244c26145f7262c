// Package audit records team lifecycle events.
//
// Services emit an AuditEvent after each successful mutation (team created,
// member added, invitation accepted, team purged, ...). Events go to a
// Logger: DBLogger persists them to audit_logs, StructuredLogger writes them
// to the application log and MultiLogger fans out to several loggers.
//
//	event := audit.NewEvent(ctx, audit.EventTypeMemberAdd, audit.EventStatusSuccess).
//		ForTeam(team.ID, audit.ResourceTypeMembership, user.ID).
//		With("role", "editor")
//	_ = logger.Log(ctx, event)
//
// NewEvent picks up the request id and acting user id placed in the context
// by the HTTP middleware.
package audit
