package tenancy

import (
	"context"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/storage"
)

// TenantColumn is the column tenant-scoped tables use for their tenant.
const TenantColumn = "tenant_id"

// Scope outcomes reported to metrics
const (
	scopeApplied    = "scoped"
	scopeBatch      = "bypassed_batch"
	scopeNoTenant   = "bypassed_no_tenant"
	scopeUnresolved = "bypassed_unresolved"
)

// ScopeEnforcer narrows reads to the active tenant and stamps new
// tenant-scoped entities with it.
//
// Resolution failures never surface: they are logged at debug level and the
// operation proceeds as if no tenant were active.
type ScopeEnforcer struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewScopeEnforcer creates a scope enforcer. metrics may be nil.
func NewScopeEnforcer(logger *observability.Logger, metrics *observability.Metrics) *ScopeEnforcer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ScopeEnforcer{logger: logger, metrics: metrics}
}

// ActiveTenant returns the tenant the operation should be scoped to, or nil
// when scoping does not apply.
func (e *ScopeEnforcer) ActiveTenant(ctx context.Context, ec ExecutionContext) *Tenant {
	if ec == nil || !ec.IsInteractive() {
		e.metrics.RecordTenantScope(scopeBatch)
		return nil
	}

	tenant, err := ec.ActiveTenant(ctx)
	if err != nil {
		e.logger.WithError(err).Debug("tenant resolution failed, continuing unscoped")
		e.metrics.RecordTenantScope(scopeUnresolved)
		return nil
	}
	if tenant == nil {
		e.metrics.RecordTenantScope(scopeNoTenant)
		return nil
	}

	e.metrics.RecordTenantScope(scopeApplied)
	return tenant
}

// ScopeQuery returns q restricted to the active tenant. The input query is
// never modified.
func (e *ScopeEnforcer) ScopeQuery(ctx context.Context, q *storage.Query, ec ExecutionContext) *storage.Query {
	if q == nil {
		return nil
	}
	tenant := e.ActiveTenant(ctx, ec)
	if tenant == nil {
		return q
	}
	return q.Where(TenantColumn, tenant.ID)
}

// AssignTenantOnCreate sets the entity's tenant to the active tenant when it
// has none yet.
func (e *ScopeEnforcer) AssignTenantOnCreate(ctx context.Context, entity TenantScoped, ec ExecutionContext) {
	if entity == nil || entity.GetTenantID() != nil {
		return
	}
	tenant := e.ActiveTenant(ctx, ec)
	if tenant == nil {
		return
	}
	entity.SetTenantID(tenant.ID)
}
