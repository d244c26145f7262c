package users

import (
	"errors"
	"time"
)

// ErrEmailTaken is returned when another user already has the email address.
var ErrEmailTaken = errors.New("email address already registered")

// User is an account that can own and join teams
type User struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Password      string     `json:"-"`
	IsActive      bool       `json:"is_active"`
	CurrentTeamID *int64     `json:"current_team_id,omitempty"`
	TenantID      *int64     `json:"tenant_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// GetTenantID returns the tenant the user belongs to, if any.
func (u *User) GetTenantID() *int64 {
	if u == nil {
		return nil
	}
	return u.TenantID
}

// SetTenantID assigns the user to a tenant.
func (u *User) SetTenantID(id int64) {
	if u == nil {
		return
	}
	u.TenantID = &id
}

// Trashed reports whether the user is soft-deleted.
func (u *User) Trashed() bool {
	return u != nil && u.DeletedAt != nil
}
