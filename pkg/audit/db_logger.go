package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

// Migrations creates the audit_logs table
var Migrations = []storage.Migration{
	{
		Component:   "audit",
		Version:     1,
		Description: "Create audit_logs table",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_logs (
				id {{serial}},
				occurred_at TIMESTAMP NOT NULL,
				event_type VARCHAR(100) NOT NULL,
				status VARCHAR(20) NOT NULL,
				actor_id BIGINT,
				team_id BIGINT,
				resource_type VARCHAR(50),
				resource_id VARCHAR(255),
				request_id VARCHAR(100),
				message TEXT,
				error_message TEXT,
				metadata TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_audit_logs_occurred_at ON audit_logs(occurred_at);
			CREATE INDEX IF NOT EXISTS idx_audit_logs_team_id ON audit_logs(team_id);
			CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_id ON audit_logs(actor_id);
		`,
	},
}

var auditColumns = []string{
	"id", "occurred_at", "event_type", "status", "actor_id", "team_id",
	"resource_type", "resource_id", "request_id", "message", "error_message", "metadata",
}

// DBLogger writes audit events to the audit_logs table
type DBLogger struct {
	db storage.Querier
}

// NewDBLogger creates a database-backed audit logger. The audit migrations
// must have been applied.
func NewDBLogger(db storage.Querier) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts an audit event and fills in its ID
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event is required: %w", storage.ErrInvalidArgument)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadata any
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (
			occurred_at, event_type, status, actor_id, team_id,
			resource_type, resource_id, request_id, message, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		event.Timestamp, string(event.EventType), string(event.Status),
		storage.NullInt64(event.ActorID), storage.NullInt64(event.TeamID),
		string(event.ResourceType), event.ResourceID, event.RequestID,
		event.Message, event.ErrorMessage, metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search returns matching events, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	q := storage.From("audit_logs", auditColumns...)
	if filter.ActorID != nil {
		q = q.Where("actor_id", *filter.ActorID)
	}
	if filter.TeamID != nil {
		q = q.Where("team_id", *filter.TeamID)
	}
	if filter.EventType != "" {
		q = q.Where("event_type", string(filter.EventType))
	}
	if filter.Status != "" {
		q = q.Where("status", string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	stmt, args := q.OrderBy("id DESC").Limit(limit).SQL()

	rows, err := l.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		event := &AuditEvent{}
		var eventType, status string
		var actorID, teamID sql.NullInt64
		var resourceType, resourceID, requestID, message, errorMessage, metadata sql.NullString
		if err := rows.Scan(
			&event.ID, &event.Timestamp, &eventType, &status, &actorID, &teamID,
			&resourceType, &resourceID, &requestID, &message, &errorMessage, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		event.ActorID = storage.Int64Ptr(actorID)
		event.TeamID = storage.Int64Ptr(teamID)
		event.ResourceType = ResourceType(resourceType.String)
		event.ResourceID = resourceID.String
		event.RequestID = requestID.String
		event.Message = message.String
		event.ErrorMessage = errorMessage.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Cleanup deletes events recorded before cutoff
func (l *DBLogger) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Close is a no-op; the database is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}
