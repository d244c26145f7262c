package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/teams"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
	"github.com/platinummonkey/tenantry/pkg/users"
)

type env struct {
	users   *users.Store
	teams   *teams.Service
	catalog *rbac.Catalog
	tenants *tenancy.Store
	metrics *observability.Metrics
	authz   *Authorizer
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	db := storage.OpenTestDB(t, users.Migrations, teams.Migrations, rbac.Migrations, tenancy.Migrations)
	catalog := rbac.NewCatalog(db)
	tenants := tenancy.NewStore(db, nil)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	opts = append([]Option{
		WithTenantAccess(tenants),
		WithCatalog(catalog),
		WithMetrics(metrics),
	}, opts...)
	return &env{
		users:   users.NewStore(db),
		teams:   teams.NewService(db),
		catalog: catalog,
		tenants: tenants,
		metrics: metrics,
		authz:   NewAuthorizer(tenancy.NewScopeEnforcer(nil, metrics), teams.NewResolver(db, catalog, nil), opts...),
	}
}

func (e *env) user(t *testing.T, name string) *users.User {
	t.Helper()
	u := &users.User{Name: name, Email: name + "@example.com", Password: "hash", IsActive: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func TestAuthorizer_Decide(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	owner := e.user(t, "owner")
	editor := e.user(t, "editor")
	granted := e.user(t, "granted")
	stranger := e.user(t, "stranger")

	team, err := e.teams.CreateTeam(ctx, owner, "Acme", false)
	require.NoError(t, err)
	_, err = e.catalog.CreateRole(ctx, "editor", nil, "read", "update")
	require.NoError(t, err)
	_, err = e.teams.AddMember(ctx, team, editor, "editor")
	require.NoError(t, err)
	_, err = e.teams.AddMember(ctx, team, granted, "editor")
	require.NoError(t, err)
	require.NoError(t, e.catalog.GivePermissionToUser(ctx, granted.ID, "billing.view", &team.ID))

	batch := tenancy.BatchContext{}
	tests := []struct {
		name       string
		user       *users.User
		team       *teams.Team
		permission string
		want       Decision
	}{
		{"owner may do anything", owner, team, "delete", Decision{true, ReasonOwner}},
		{"member via role", editor, team, "update", Decision{true, ReasonTeamRole}},
		{"member lacking permission", editor, team, "delete", Decision{false, ReasonMissingPermission}},
		{"direct grant", granted, team, "billing.view", Decision{true, ReasonDirect}},
		{"direct grant does not leak", editor, team, "billing.view", Decision{false, ReasonMissingPermission}},
		{"stranger", stranger, team, "read", Decision{false, ReasonNotMember}},
		{"nil team", editor, nil, "read", Decision{false, ReasonMissingArgument}},
		{"nil user", nil, team, "read", Decision{false, ReasonMissingArgument}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.authz.Decide(ctx, batch, tt.user, tt.team, tt.permission)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			can, err := e.authz.Can(ctx, batch, tt.user, tt.team, tt.permission)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Allowed, can)
		})
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.AuthzDecisionsTotal.WithLabelValues("allowed", ReasonOwner)))
	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.AuthzDecisionsTotal.WithLabelValues("denied", ReasonNotMember)))
}

func TestAuthorizer_TenantBoundary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	acme, err := e.tenants.CreateTenant(ctx, "Acme")
	require.NoError(t, err)
	globex, err := e.tenants.CreateTenant(ctx, "Globex")
	require.NoError(t, err)

	owner := e.user(t, "owner")
	require.NoError(t, e.tenants.AttachUser(ctx, acme.ID, owner.ID))
	team, err := e.teams.CreateTeam(ctx, owner, "Acme", false)
	require.NoError(t, err)

	ok, err := e.authz.Can(ctx, tenancy.StaticContext{Tenant: acme}, owner, team, "read")
	require.NoError(t, err)
	assert.True(t, ok)

	d, err := e.authz.Decide(ctx, tenancy.StaticContext{Tenant: globex}, owner, team, "read")
	require.NoError(t, err)
	assert.Equal(t, Decision{false, ReasonOutsideTenant}, d)

	t.Run("unresolved tenant is unscoped", func(t *testing.T) {
		ec := tenancy.StaticContext{Err: tenancy.ErrTenantUnresolved}
		ok, err := e.authz.Can(ctx, ec, owner, team, "read")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("request context", func(t *testing.T) {
		ok, err := e.authz.Can(contextkeys.WithTenant(ctx, globex), tenancy.RequestContext{}, owner, team, "read")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAuthorizer_TrashedTeam(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner := e.user(t, "owner")
	team, err := e.teams.CreateTeam(ctx, owner, "Acme", false)
	require.NoError(t, err)
	require.NoError(t, e.teams.DeleteTeam(ctx, team))

	d, err := e.authz.Decide(ctx, tenancy.BatchContext{}, owner, team, "read")
	require.NoError(t, err)
	assert.Equal(t, Decision{false, ReasonTeamDeleted}, d)
}

type failingTenants struct{}

func (failingTenants) CanAccessTenant(context.Context, int64, *tenancy.Tenant) (bool, error) {
	return false, errors.New("tenant store down")
}

func TestAuthorizer_Telemetry(t *testing.T) {
	ctx := context.Background()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(ctx)
	otelMetrics, err := observability.NewOTelMetrics(mp)
	require.NoError(t, err)

	e := newEnv(t, WithOTelMetrics(otelMetrics), WithTenantAccess(failingTenants{}))
	owner := e.user(t, "owner")
	team, err := e.teams.CreateTeam(ctx, owner, "Acme", false)
	require.NoError(t, err)
	tenant := &tenancy.Tenant{ID: 1, Name: "Acme", Slug: "acme"}

	_, err = e.authz.Decide(ctx, tenancy.StaticContext{Tenant: tenant}, owner, team, "read")
	require.Error(t, err)
	_, err = e.authz.Decide(ctx, tenancy.BatchContext{}, owner, team, "read")
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.AuthzDecisionsTotal.WithLabelValues("denied", ReasonError)))

	var decided []sdktrace.ReadOnlySpan
	for _, s := range exporter.GetSpans().Snapshots() {
		if s.Name() == "authz.Decide" {
			decided = append(decided, s)
		}
	}
	require.Len(t, decided, 2)
	assert.Len(t, decided[0].Events(), 1, "error recorded on span")
	assert.Contains(t, decided[1].Attributes(), attribute.String("authz.reason", ReasonOwner))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "tenantry.authz.decisions" {
				found = true
			}
		}
	}
	assert.True(t, found)
}
