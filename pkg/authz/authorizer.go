package authz

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/teams"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
	"github.com/platinummonkey/tenantry/pkg/users"
)

var authzTracer = otel.Tracer("tenantry/authz")

// Reasons attached to decisions and metrics
const (
	ReasonOwner             = "owner"
	ReasonTeamRole          = "team_role"
	ReasonDirect            = "direct"
	ReasonMissingArgument   = "missing_argument"
	ReasonOutsideTenant     = "outside_tenant"
	ReasonTeamDeleted       = "team_deleted"
	ReasonNotMember         = "not_member"
	ReasonMissingPermission = "missing_permission"
	ReasonError             = "error"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool
	Reason  string
}

// TenantAccess reports whether a user may act inside a tenant
type TenantAccess interface {
	CanAccessTenant(ctx context.Context, userID int64, tenant *tenancy.Tenant) (bool, error)
}

// Authorizer decides whether a user may exercise a permission in a team.
// The active tenant is checked first, then team ownership and membership,
// then permissions granted to the user directly.
type Authorizer struct {
	scope    *tenancy.ScopeEnforcer
	tenants  TenantAccess
	resolver *teams.Resolver
	catalog  rbac.RolePermissionCatalog
	logger   *observability.Logger
	metrics  *observability.Metrics
	otel     *observability.OTelMetrics
}

// Option configures an Authorizer
type Option func(*Authorizer)

// WithTenantAccess enables the tenant membership check
func WithTenantAccess(tenants TenantAccess) Option {
	return func(a *Authorizer) { a.tenants = tenants }
}

// WithCatalog enables permissions granted to users directly
func WithCatalog(catalog rbac.RolePermissionCatalog) Option {
	return func(a *Authorizer) { a.catalog = catalog }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records decisions in Prometheus
func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *Authorizer) { a.metrics = metrics }
}

// WithOTelMetrics records decisions through OpenTelemetry
func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(a *Authorizer) { a.otel = metrics }
}

// NewAuthorizer creates an authorizer
func NewAuthorizer(scope *tenancy.ScopeEnforcer, resolver *teams.Resolver, opts ...Option) *Authorizer {
	a := &Authorizer{
		scope:    scope,
		resolver: resolver,
		logger:   observability.NopLogger(),
	}
	if a.scope == nil {
		a.scope = tenancy.NewScopeEnforcer(nil, nil)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Can reports whether user may exercise permission in team
func (a *Authorizer) Can(ctx context.Context, ec tenancy.ExecutionContext, user *users.User, team *teams.Team, permission string) (bool, error) {
	d, err := a.Decide(ctx, ec, user, team, permission)
	return d.Allowed, err
}

// Decide is Can with the reason for the outcome
func (a *Authorizer) Decide(ctx context.Context, ec tenancy.ExecutionContext, user *users.User, team *teams.Team, permission string) (Decision, error) {
	start := time.Now()
	ctx, span := authzTracer.Start(ctx, "authz.Decide",
		trace.WithAttributes(attribute.String("authz.permission", permission)))
	defer span.End()

	d, err := a.decide(ctx, ec, user, team, permission)
	if err != nil {
		d = Decision{Reason: ReasonError}
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
	}

	span.SetAttributes(
		attribute.Bool("authz.allowed", d.Allowed),
		attribute.String("authz.reason", d.Reason),
	)
	elapsed := time.Since(start)
	a.metrics.RecordAuthzDecision(d.Allowed, d.Reason, elapsed)
	a.otel.RecordAuthzDecision(ctx, d.Allowed, d.Reason, elapsed.Seconds())

	if !d.Allowed {
		fields := map[string]interface{}{
			"permission": permission,
			"reason":     d.Reason,
		}
		if user != nil {
			fields["user_id"] = user.ID
		}
		if team != nil {
			fields["team_id"] = team.ID
		}
		a.logger.WithFields(fields).Debug("authorization denied")
	}
	return d, err
}

func (a *Authorizer) decide(ctx context.Context, ec tenancy.ExecutionContext, user *users.User, team *teams.Team, permission string) (Decision, error) {
	if user == nil || team == nil || permission == "" {
		return Decision{Reason: ReasonMissingArgument}, nil
	}

	if tenant := a.scope.ActiveTenant(ctx, ec); tenant != nil && a.tenants != nil {
		ok, err := a.tenants.CanAccessTenant(ctx, user.ID, tenant)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Reason: ReasonOutsideTenant}, nil
		}
	}

	if team.Trashed() {
		return Decision{Reason: ReasonTeamDeleted}, nil
	}
	if a.resolver.IsOwner(user, team) {
		return Decision{Allowed: true, Reason: ReasonOwner}, nil
	}

	member, err := a.resolver.IsMember(ctx, user, team)
	if err != nil {
		return Decision{}, err
	}
	if !member {
		return Decision{Reason: ReasonNotMember}, nil
	}

	ok, err := a.resolver.HasPermission(ctx, user, team, permission)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{Allowed: true, Reason: ReasonTeamRole}, nil
	}

	if a.catalog != nil {
		ok, err := a.catalog.HasPermissionTo(ctx, user.ID, permission, &team.ID)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return Decision{Allowed: true, Reason: ReasonDirect}, nil
		}
	}
	return Decision{Reason: ReasonMissingPermission}, nil
}
