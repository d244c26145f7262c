package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the authorization counters as OpenTelemetry instruments
// so they reach the OTLP collector alongside traces.
type OTelMetrics struct {
	authzDecisions metric.Int64Counter
	membershipOps  metric.Int64Counter
	teamSwitches   metric.Int64Counter
	authzLatency   metric.Float64Histogram
}

// NewOTelMetrics creates instruments on the given meter provider, or the
// global one when mp is nil.
func NewOTelMetrics(mp metric.MeterProvider) (*OTelMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("github.com/platinummonkey/tenantry")

	m := &OTelMetrics{}
	var err error

	m.authzDecisions, err = meter.Int64Counter(
		"tenantry.authz.decisions",
		metric.WithDescription("Authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authz decisions counter: %w", err)
	}

	m.authzLatency, err = meter.Float64Histogram(
		"tenantry.authz.duration",
		metric.WithDescription("Authorization decision latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authz duration histogram: %w", err)
	}

	m.membershipOps, err = meter.Int64Counter(
		"tenantry.membership.operations",
		metric.WithDescription("Team lifecycle operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership operations counter: %w", err)
	}

	m.teamSwitches, err = meter.Int64Counter(
		"tenantry.team.switches",
		metric.WithDescription("Current team switch attempts"),
		metric.WithUnit("{switch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create team switches counter: %w", err)
	}

	return m, nil
}

// RecordAuthzDecision records one decision. Safe on a nil receiver.
func (m *OTelMetrics) RecordAuthzDecision(ctx context.Context, allowed bool, reason string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("allowed", allowed),
		attribute.String("reason", reason),
	)
	m.authzDecisions.Add(ctx, 1, attrs)
	m.authzLatency.Record(ctx, seconds, attrs)
}

// RecordMembershipOperation records one lifecycle operation.
func (m *OTelMetrics) RecordMembershipOperation(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	m.membershipOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	))
}

// RecordTeamSwitch records one switch attempt.
func (m *OTelMetrics) RecordTeamSwitch(ctx context.Context, switched bool) {
	if m == nil {
		return
	}
	m.teamSwitches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("switched", switched)))
}
