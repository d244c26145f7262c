package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/tenantry/pkg/observability"
)

// MultiLogger logs to multiple audit loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes every event to each destination
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes the event to every logger, continuing past failures
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close logger: %w", err))
		}
	}
	return errors.Join(errs...)
}

// StructuredLogger writes audit events to the application log
type StructuredLogger struct {
	logger *observability.Logger
}

// NewStructuredLogger creates an audit logger backed by logger
func NewStructuredLogger(logger *observability.Logger) *StructuredLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &StructuredLogger{logger: logger}
}

func (s *StructuredLogger) Log(_ context.Context, event *AuditEvent) error {
	fields := map[string]interface{}{
		"audit_event":  string(event.EventType),
		"audit_status": string(event.Status),
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.TeamID != nil {
		fields["team_id"] = *event.TeamID
	}
	if event.ResourceType != "" {
		fields["resource"] = string(event.ResourceType) + ":" + event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := s.logger.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

func (s *StructuredLogger) Close() error {
	return nil
}
