package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes and releases the logger
	Close() error
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(context.Context, *AuditEvent) error { return nil }
func (NopLogger) Close() error                           { return nil }

// NewEvent creates an event stamped with the request id and acting user
// found in ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
	if id, err := strconv.ParseInt(contextkeys.GetUserID(ctx), 10, 64); err == nil {
		event.ActorID = &id
	}
	return event
}

// ForTeam sets the team scope and resource of the event
func (e *AuditEvent) ForTeam(teamID int64, resourceType ResourceType, resourceID int64) *AuditEvent {
	e.TeamID = &teamID
	e.ResourceType = resourceType
	e.ResourceID = strconv.FormatInt(resourceID, 10)
	return e
}

// ForUser sets a user account as the resource of the event
func (e *AuditEvent) ForUser(userID int64) *AuditEvent {
	e.ResourceType = ResourceTypeUser
	e.ResourceID = strconv.FormatInt(userID, 10)
	return e
}

// With adds a metadata field
func (e *AuditEvent) With(key string, value interface{}) *AuditEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Failed marks the event failed with err
func (e *AuditEvent) Failed(err error) *AuditEvent {
	e.Status = EventStatusFailure
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}
