// Package contextkeys provides centralized context key definitions
//
// All context keys used across the module are defined here so that the HTTP
// adapters, the tenant scope enforcer and the logger agree on them without
// importing each other.
//
//	ctx = contextkeys.WithTenant(ctx, tenant)
//	tenant, _ := contextkeys.Tenant(ctx).(*tenancy.Tenant)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// TenantKey contains *tenancy.Tenant
	// Set by: middleware.TenantContext (pkg/middleware/tenant.go)
	// Required by: tenancy.RequestContext
	TenantKey Key = "tenant"

	// UserKey contains *users.User
	// Set by: middleware.WithUser after the host application authenticates
	// Used by: authorization checks in handlers
	UserKey Key = "user"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Used by: Logger, audit trail
	UserIDKey Key = "user_id"

	// TenantIDKey contains the active tenant ID string
	// Set by: middleware.TenantContext
	// Used by: Logger
	TenantIDKey Key = "tenant_id"

	// LoggerKey contains *observability.Logger
	LoggerKey Key = "logger"
)

// WithTenant adds the active tenant to the context
func WithTenant(ctx context.Context, tenant interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// Tenant returns the raw tenant value stored in the context
func Tenant(ctx context.Context) interface{} {
	return ctx.Value(TenantKey)
}

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// User returns the raw user value stored in the context
func User(ctx context.Context) interface{} {
	return ctx.Value(UserKey)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithTenantID adds the active tenant ID to the context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetTenantID retrieves the active tenant ID from context
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
