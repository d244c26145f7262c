package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Team lifecycle events
	EventTypeTeamCreate            EventType = "team.create"
	EventTypeTeamUpdate            EventType = "team.update"
	EventTypeTeamDelete            EventType = "team.delete"
	EventTypeTeamForceDelete       EventType = "team.force_delete"
	EventTypeTeamPurge             EventType = "team.purge"
	EventTypeTeamOwnershipTransfer EventType = "team.ownership_transfer"

	// Membership events
	EventTypeMemberAdd        EventType = "member.add"
	EventTypeMemberRemove     EventType = "member.remove"
	EventTypeMemberRoleChange EventType = "member.role_change"

	// Invitation events
	EventTypeInvitationCreate  EventType = "invitation.create"
	EventTypeInvitationAccept  EventType = "invitation.accept"
	EventTypeInvitationDecline EventType = "invitation.decline"

	// Current team events
	EventTypeTeamSwitch EventType = "team.switch"

	// Account events
	EventTypeUserRegister EventType = "user.register"
	EventTypeUserDelete   EventType = "user.delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceTypeTeam       ResourceType = "team"
	ResourceTypeMembership ResourceType = "membership"
	ResourceTypeInvitation ResourceType = "invitation"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeTenant     ResourceType = "tenant"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and scope
	ActorID *int64 `json:"actor_id,omitempty"`
	TeamID  *int64 `json:"team_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	RequestID    string                 `json:"request_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching audit logs. Zero fields
// are ignored.
type SearchFilter struct {
	ActorID   *int64
	TeamID    *int64
	EventType EventType
	Status    EventStatus
	Limit     int
}
