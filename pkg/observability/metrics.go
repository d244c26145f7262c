package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// A nil *Metrics is valid; every Record method is then a no-op, which keeps
// library callers free of metrics wiring.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec
	AuthzDuration       prometheus.Histogram

	// Membership metrics
	MembershipOperationsTotal *prometheus.CounterVec
	TeamSwitchesTotal         *prometheus.CounterVec

	// Tenancy metrics
	TenantScopeTotal *prometheus.CounterVec

	// Cache metrics
	PermissionCacheHitsTotal   *prometheus.CounterVec
	PermissionCacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBConnectionsWait   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantry_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"result", "reason"},
		),
		AuthzDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tenantry_authz_duration_seconds",
				Help:    "Authorization decision latency in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
			},
		),

		MembershipOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_membership_operations_total",
				Help: "Total number of team lifecycle operations",
			},
			[]string{"operation", "status"},
		),
		TeamSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_team_switches_total",
				Help: "Total number of current team switch attempts",
			},
			[]string{"result"},
		),

		TenantScopeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_tenant_scope_total",
				Help: "Tenant scope decisions by outcome",
			},
			[]string{"outcome"},
		),

		PermissionCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_permission_cache_hits_total",
				Help: "Total number of permission cache hits",
			},
			[]string{"backend"},
		),
		PermissionCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_permission_cache_misses_total",
				Help: "Total number of permission cache misses",
			},
			[]string{"backend"},
		),

		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenantry_db_connections_active",
			Help: "Number of database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenantry_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBConnectionsWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenantry_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AuthzDuration,
		m.MembershipOperationsTotal,
		m.TeamSwitchesTotal,
		m.TenantScopeTotal,
		m.PermissionCacheHitsTotal,
		m.PermissionCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWait,
	)

	return m
}

// RecordAuthzDecision counts an authorization decision and its latency.
func (m *Metrics) RecordAuthzDecision(allowed bool, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.AuthzDecisionsTotal.WithLabelValues(result, reason).Inc()
	m.AuthzDuration.Observe(elapsed.Seconds())
}

// RecordMembershipOperation counts a lifecycle operation outcome.
func (m *Metrics) RecordMembershipOperation(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MembershipOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordTeamSwitch counts a current team switch attempt.
func (m *Metrics) RecordTeamSwitch(switched bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if switched {
		result = "switched"
	}
	m.TeamSwitchesTotal.WithLabelValues(result).Inc()
}

// RecordTenantScope counts whether a tenant predicate was applied.
func (m *Metrics) RecordTenantScope(outcome string) {
	if m == nil {
		return
	}
	m.TenantScopeTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a permission cache lookup.
func (m *Metrics) RecordCacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.PermissionCacheHitsTotal.WithLabelValues(backend).Inc()
		return
	}
	m.PermissionCacheMissesTotal.WithLabelValues(backend).Inc()
}

// UpdateDBStats copies connection pool statistics into the gauges.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWait.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			if metrics == nil {
				return
			}
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
