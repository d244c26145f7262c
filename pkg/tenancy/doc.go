// Package tenancy implements tenant isolation.
//
// A Tenant groups users and tenant-scoped entities. The ScopeEnforcer is the
// single place where isolation is applied:
//
//   - ScopeQuery adds a tenant_id predicate to reads
//   - AssignTenantOnCreate stamps new entities with the active tenant
//
// Both consult an ExecutionContext that is passed in explicitly. A
// BatchContext (console commands, jobs) is never interactive and bypasses
// scoping. A RequestContext reads the tenant the HTTP middleware stored in
// the request context. When the active tenant cannot be resolved the error is
// logged at debug level and the operation continues unscoped.
//
// Store persists tenants and the tenant_user membership. Slugs are derived
// from the name on create and on rename.
package tenancy
