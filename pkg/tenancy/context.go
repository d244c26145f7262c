package tenancy

import (
	"context"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
)

// ExecutionContext tells the scope enforcer whether it runs on behalf of an
// interactive request and which tenant is active. It is always passed in
// explicitly.
type ExecutionContext interface {
	IsInteractive() bool
	ActiveTenant(ctx context.Context) (*Tenant, error)
}

// BatchContext is the execution context of console commands and jobs. It is
// never interactive, so tenant scoping is bypassed.
type BatchContext struct{}

func (BatchContext) IsInteractive() bool { return false }

func (BatchContext) ActiveTenant(context.Context) (*Tenant, error) { return nil, nil }

// RequestContext resolves the tenant that the HTTP middleware stored in the
// request context.
type RequestContext struct{}

func (RequestContext) IsInteractive() bool { return true }

func (RequestContext) ActiveTenant(ctx context.Context) (*Tenant, error) {
	tenant, ok := contextkeys.Tenant(ctx).(*Tenant)
	if !ok || tenant == nil {
		return nil, ErrTenantUnresolved
	}
	return tenant, nil
}

// StaticContext is an interactive context with a fixed tenant, or a fixed
// resolution error.
type StaticContext struct {
	Tenant *Tenant
	Err    error
}

func (StaticContext) IsInteractive() bool { return true }

func (s StaticContext) ActiveTenant(context.Context) (*Tenant, error) {
	return s.Tenant, s.Err
}
