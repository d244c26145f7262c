package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	t.Run("registering twice panics", func(t *testing.T) {
		assert.Panics(t, func() { NewMetrics(registry) })
	})
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthzDecision(true, "owner", time.Millisecond)
	m.RecordAuthzDecision(false, "not_member", time.Millisecond)
	m.RecordAuthzDecision(false, "not_member", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("allowed", "owner")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("denied", "not_member")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AuthzDuration))

	m.RecordMembershipOperation("add_member", nil)
	m.RecordMembershipOperation("add_member", errors.New("db down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MembershipOperationsTotal.WithLabelValues("add_member", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MembershipOperationsTotal.WithLabelValues("add_member", "error")))

	m.RecordTeamSwitch(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TeamSwitchesTotal.WithLabelValues("rejected")))

	m.RecordTenantScope("bypassed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TenantScopeTotal.WithLabelValues("bypassed")))

	m.RecordCacheLookup("lru", true)
	m.RecordCacheLookup("lru", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PermissionCacheHitsTotal.WithLabelValues("lru")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PermissionCacheMissesTotal.WithLabelValues("lru")))

	m.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 2})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DBConnectionsIdle))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuthzDecision(true, "owner", 0)
		m.RecordMembershipOperation("purge_team", nil)
		m.RecordTeamSwitch(true)
		m.RecordTenantScope("scoped")
		m.RecordCacheLookup("redis", false)
		m.UpdateDBStats(sql.DBStats{})
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "418")))

	t.Run("metrics endpoint exposes counters", func(t *testing.T) {
		mux := http.NewServeMux()
		RegisterMetricsEndpoint(mux, registry)

		srv := httptest.NewServer(mux)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "tenantry_http_requests_total"))
	})
}
