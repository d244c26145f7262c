// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup and health checks.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("team_id", team.ID).Info("member added")
//
// FromContext enriches the context logger with the request and user IDs set by
// the HTTP middleware.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordAuthzDecision(true, "owner", elapsed)
//
// A nil *Metrics is accepted everywhere, so library users can skip metrics.
//
// # OpenTelemetry
//
// InitOTel installs OTLP/gRPC trace and metric providers globally. The teams
// service and the authorizer open spans through otel.Tracer and record
// OTelMetrics instruments.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db.DB, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
package observability
