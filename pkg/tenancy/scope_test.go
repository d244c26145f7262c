package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scopedRecord struct {
	tenantID *int64
}

func (r *scopedRecord) GetTenantID() *int64  { return r.tenantID }
func (r *scopedRecord) SetTenantID(id int64) { r.tenantID = &id }

func TestScopeEnforcer_ScopeQuery(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	enforcer := NewScopeEnforcer(nil, metrics)
	base := storage.From("users", "id").WhereNull("deleted_at")

	t.Run("interactive context adds tenant predicate", func(t *testing.T) {
		scoped := enforcer.ScopeQuery(ctx, base, StaticContext{Tenant: &Tenant{ID: 7}})

		stmt, args := scoped.SQL()
		assert.Equal(t, "SELECT id FROM users WHERE deleted_at IS NULL AND tenant_id = $1", stmt)
		assert.Equal(t, []any{int64(7)}, args)
		assert.False(t, base.HasCondition(TenantColumn), "input query must not be modified")
	})

	t.Run("batch context bypasses scoping", func(t *testing.T) {
		scoped := enforcer.ScopeQuery(ctx, base, BatchContext{})
		assert.Same(t, base, scoped)
	})

	t.Run("resolution error is swallowed", func(t *testing.T) {
		scoped := enforcer.ScopeQuery(ctx, base, StaticContext{Err: errors.New("no session")})
		assert.Same(t, base, scoped)
	})

	t.Run("no active tenant", func(t *testing.T) {
		scoped := enforcer.ScopeQuery(ctx, base, StaticContext{})
		assert.False(t, scoped.HasCondition(TenantColumn))
	})

	t.Run("nil inputs", func(t *testing.T) {
		assert.Nil(t, enforcer.ScopeQuery(ctx, nil, BatchContext{}))
		assert.Same(t, base, enforcer.ScopeQuery(ctx, base, nil))
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TenantScopeTotal.WithLabelValues(scopeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TenantScopeTotal.WithLabelValues(scopeUnresolved)))
}

func TestScopeEnforcer_AssignTenantOnCreate(t *testing.T) {
	ctx := context.Background()
	enforcer := NewScopeEnforcer(observability.NopLogger(), nil)

	t.Run("stamps active tenant", func(t *testing.T) {
		rec := &scopedRecord{}
		enforcer.AssignTenantOnCreate(ctx, rec, StaticContext{Tenant: &Tenant{ID: 3}})
		require.NotNil(t, rec.tenantID)
		assert.Equal(t, int64(3), *rec.tenantID)
	})

	t.Run("keeps existing tenant", func(t *testing.T) {
		existing := int64(9)
		rec := &scopedRecord{tenantID: &existing}
		enforcer.AssignTenantOnCreate(ctx, rec, StaticContext{Tenant: &Tenant{ID: 3}})
		assert.Equal(t, int64(9), *rec.tenantID)
	})

	t.Run("batch context leaves tenant unset", func(t *testing.T) {
		rec := &scopedRecord{}
		enforcer.AssignTenantOnCreate(ctx, rec, BatchContext{})
		assert.Nil(t, rec.tenantID)
	})

	t.Run("resolution failure leaves tenant unset", func(t *testing.T) {
		rec := &scopedRecord{}
		enforcer.AssignTenantOnCreate(ctx, rec, RequestContext{})
		assert.Nil(t, rec.tenantID)
	})
}

func TestRequestContext(t *testing.T) {
	rc := RequestContext{}
	assert.True(t, rc.IsInteractive())

	_, err := rc.ActiveTenant(context.Background())
	assert.ErrorIs(t, err, ErrTenantUnresolved)

	ctx := contextkeys.WithTenant(context.Background(), &Tenant{ID: 5, Slug: "acme"})
	tenant, err := rc.ActiveTenant(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), tenant.ID)

	assert.False(t, BatchContext{}.IsInteractive())
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Acme Corp":          "acme-corp",
		"  Hello,  World! ":  "hello-world",
		"Ünïcode Team 42":    "n-code-team-42",
		"already-slugged":    "already-slugged",
		"   ":                "",
		"Trailing Symbols!!": "trailing-symbols",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Slugify(in))
		})
	}

	t.Run("no ascii letters or digits", func(t *testing.T) {
		tokyo := Slugify("東京")
		assert.Regexp(t, `^tenant-[0-9a-f]{12}$`, tokyo)
		assert.Equal(t, tokyo, Slugify(" 東京 "), "slug is deterministic")
		assert.NotEqual(t, tokyo, Slugify("大阪"))
		assert.NotEqual(t, Slugify("!!!"), Slugify("---"))
	})
}
