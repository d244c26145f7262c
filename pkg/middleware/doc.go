// Package middleware provides HTTP middleware that binds requests to a user,
// a tenant and a team.
//
// # Overview
//
// The middleware is the HTTP edge of the authorization core. It does not
// handle credentials itself: the host application supplies a UserLoader, and
// the middleware stores the user and the tenant where tenancy.RequestContext
// and authz.Authorizer expect them.
//
// # Middleware Components
//
// RequestID: propagates or assigns X-Request-ID
//
//	router.Use(middleware.RequestID)
//
// AuthMiddleware: attaches the authenticated user
//
//	auth := middleware.NewAuthMiddleware(middleware.BasicAuth(registrar), false, logger)
//	router.Use(auth.Handler)
//
// TenantContext: resolves {tenant} or {tenant_id} route variables
//
//	router.Use(middleware.TenantContext(tenantStore))
//
// TeamGuard: requires a team permission
//
//	guard := middleware.NewTeamGuard(authorizer, teamStore, currentTeam)
//	router.Handle("/teams/{team_id}/members", guard.Require("members:update")(handler))
//
// RateLimitMiddleware and DistributedRateLimitMiddleware: token bucket per
// user, or per client address for anonymous requests
//
//	router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient, logger).Handler)
//
// # Ordering
//
// RequestID, then AuthMiddleware, then TenantContext, then rate limiting and
// TeamGuard. Rate limiting keys on the user, so it must follow authentication.
//
// # Related Packages
//
//   - pkg/authz: Authorizer implements PermissionChecker
//   - pkg/tenancy: RequestContext reads the tenant stored by TenantContext
//   - pkg/contextkeys: shared context keys
package middleware
