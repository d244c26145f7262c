package teams

import (
	"errors"
	"time"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

var (
	// ErrInvalidArgument is returned when a required team, user or
	// invitation is missing. It is the same value as storage.ErrInvalidArgument.
	ErrInvalidArgument = storage.ErrInvalidArgument

	// ErrPersonalTeamExists is returned when a user already owns a personal team
	ErrPersonalTeamExists = errors.New("user already owns a personal team")

	// ErrNotAMember is returned by operations that require an existing
	// membership, such as an ownership transfer
	ErrNotAMember = errors.New("user is not a member of the team")
)

// Team is a group of users with a single owner
type Team struct {
	ID           int64      `json:"id"`
	UserID       *int64     `json:"user_id"`
	Name         string     `json:"name"`
	PersonalTeam bool       `json:"personal_team"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Trashed reports whether the team is soft-deleted
func (t *Team) Trashed() bool {
	return t.DeletedAt != nil
}

// Membership grants a non-owner user a role in a team
type Membership struct {
	TeamID      int64     `json:"team_id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Invitation is a pending offer to join a team
type Invitation struct {
	ID         int64      `json:"id"`
	TeamID     int64      `json:"team_id"`
	InviterID  *int64     `json:"inviter_id,omitempty"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Token      string     `json:"token,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt *time.Time `json:"declined_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
