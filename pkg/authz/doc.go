// Package authz combines tenant scoping, team membership and the role
// catalog into a single authorization decision.
//
//	authorizer := authz.NewAuthorizer(scope, resolver,
//		authz.WithTenantAccess(tenantStore),
//		authz.WithCatalog(catalog),
//		authz.WithMetrics(metrics),
//	)
//	ok, err := authorizer.Can(ctx, tenancy.RequestContext{}, user, team, "update")
//
// Denials are ordinary false results with a reason; only store failures are
// returned as errors. Team owners are always allowed, except in a
// soft-deleted team or outside the active tenant.
package authz
