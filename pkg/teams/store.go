package teams

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

const teamColumns = `id, user_id, name, personal_team, created_at, updated_at, deleted_at`

const invitationColumns = `id, team_id, inviter_id, email, role, token, accepted_at, declined_at, created_at, updated_at`

// Store persists teams, memberships and invitations. It works on a pool or
// inside a transaction.
type Store struct {
	db storage.Querier
}

// NewStore creates a team store
func NewStore(db storage.Querier) *Store {
	return &Store{db: db}
}

func scanTeam(row interface{ Scan(...any) error }) (*Team, error) {
	t := &Team{}
	var ownerID sql.NullInt64
	var deletedAt sql.NullTime
	if err := row.Scan(&t.ID, &ownerID, &t.Name, &t.PersonalTeam, &t.CreatedAt, &t.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	t.UserID = storage.Int64Ptr(ownerID)
	t.DeletedAt = storage.TimePtr(deletedAt)
	return t, nil
}

func (s *Store) queryTeams(ctx context.Context, query string, args ...any) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// CreateTeam inserts a team and fills in its id and timestamps
func (s *Store) CreateTeam(ctx context.Context, t *Team) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO teams (user_id, name, personal_team, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, storage.NullInt64(t.UserID), t.Name, t.PersonalTeam, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("failed to create team: %w", ErrPersonalTeamExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// GetTeam retrieves a team by id, including soft-deleted teams
func (s *Store) GetTeam(ctx context.Context, id int64) (*Team, error) {
	t, err := scanTeam(s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// UpdateTeam saves the team's name and owner
func (s *Store) UpdateTeam(ctx context.Context, t *Team) error {
	t.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE teams SET name = $1, user_id = $2, updated_at = $3 WHERE id = $4`,
		t.Name, storage.NullInt64(t.UserID), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return expectOne(result, fmt.Sprintf("team %d", t.ID))
}

// SoftDeleteTeam marks a team deleted
func (s *Store) SoftDeleteTeam(ctx context.Context, id int64) (time.Time, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE teams SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, id,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to delete team: %w", err)
	}
	return now, expectOne(result, fmt.Sprintf("team %d", id))
}

// DeleteTeam removes the team row
func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return expectOne(result, fmt.Sprintf("team %d", id))
}

// PersonalTeam returns the personal team owned by userID
func (s *Store) PersonalTeam(ctx context.Context, userID int64) (*Team, error) {
	t, err := scanTeam(s.db.QueryRowContext(ctx, `
		SELECT `+teamColumns+` FROM teams
		WHERE user_id = $1 AND personal_team = $2 AND deleted_at IS NULL
		ORDER BY id
		LIMIT 1
	`, userID, true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("personal team of user %d: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personal team: %w", err)
	}
	return t, nil
}

// OwnedTeams lists the teams owned by userID in creation order
func (s *Store) OwnedTeams(ctx context.Context, userID int64) ([]*Team, error) {
	return s.queryTeams(ctx, `
		SELECT `+teamColumns+` FROM teams
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, userID)
}

// AllTeams lists the teams userID owns or belongs to in creation order
func (s *Store) AllTeams(ctx context.Context, userID int64) ([]*Team, error) {
	return s.queryTeams(ctx, `
		SELECT `+teamColumns+` FROM teams
		WHERE deleted_at IS NULL
		  AND (user_id = $1 OR id IN (SELECT team_id FROM team_user WHERE user_id = $1))
		ORDER BY id
	`, userID)
}

// SharedTeamCount counts the live non-personal teams owned by userID
func (s *Store) SharedTeamCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams WHERE user_id = $1 AND personal_team = $2 AND deleted_at IS NULL`,
		userID, false,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return n, nil
}

func encodePermissions(perms []string) (any, error) {
	if perms == nil {
		return nil, nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return string(data), nil
}

func scanMembership(row interface{ Scan(...any) error }) (*Membership, error) {
	m := &Membership{}
	var role, perms sql.NullString
	if err := row.Scan(&m.TeamID, &m.UserID, &role, &perms, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Role = role.String
	if perms.Valid && perms.String != "" {
		if err := json.Unmarshal([]byte(perms.String), &m.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	return m, nil
}

// GetMembership returns the membership row of (teamID, userID)
func (s *Store) GetMembership(ctx context.Context, teamID, userID int64) (*Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, `
		SELECT team_id, user_id, role, permissions, created_at, updated_at
		FROM team_user
		WHERE team_id = $1 AND user_id = $2
	`, teamID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership of user %d in team %d: %w", userID, teamID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// InsertMembership inserts a membership row. A duplicate (team, user) pair
// is reported as the driver's unique violation.
func (s *Store) InsertMembership(ctx context.Context, m *Membership) error {
	perms, err := encodePermissions(m.Permissions)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO team_user (team_id, user_id, role, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.TeamID, m.UserID, m.Role, perms, now, now)
	return err
}

// UpsertMembership inserts a membership or replaces the role of an existing one
func (s *Store) UpsertMembership(ctx context.Context, m *Membership) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO team_user (team_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at
	`, m.TeamID, m.UserID, m.Role, now, now); err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

// UpdateMembership updates the role of a membership, and its permissions
// when permissions is non-nil
func (s *Store) UpdateMembership(ctx context.Context, teamID, userID int64, role string, permissions []string) error {
	now := time.Now().UTC()
	var result sql.Result
	var err error
	if permissions == nil {
		result, err = s.db.ExecContext(ctx,
			`UPDATE team_user SET role = $1, updated_at = $2 WHERE team_id = $3 AND user_id = $4`,
			role, now, teamID, userID,
		)
	} else {
		perms, encErr := encodePermissions(permissions)
		if encErr != nil {
			return encErr
		}
		result, err = s.db.ExecContext(ctx,
			`UPDATE team_user SET role = $1, permissions = $2, updated_at = $3 WHERE team_id = $4 AND user_id = $5`,
			role, perms, now, teamID, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return expectOne(result, fmt.Sprintf("membership of user %d in team %d", userID, teamID))
}

// DeleteMembership removes a membership and reports whether one existed
func (s *Store) DeleteMembership(ctx context.Context, teamID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM team_user WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteMemberships detaches every member of a team
func (s *Store) DeleteMemberships(ctx context.Context, teamID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM team_user WHERE team_id = $1`, teamID)
	if err != nil {
		return 0, fmt.Errorf("failed to detach members: %w", err)
	}
	return result.RowsAffected()
}

// DeleteUserMemberships detaches a user from every team
func (s *Store) DeleteUserMemberships(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM team_user WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to detach user from teams: %w", err)
	}
	return result.RowsAffected()
}

// Members lists the membership rows of a team
func (s *Store) Members(ctx context.Context, teamID int64) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, user_id, role, permissions, created_at, updated_at
		FROM team_user
		WHERE team_id = $1
		ORDER BY user_id
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanInvitation(row interface{ Scan(...any) error }) (*Invitation, error) {
	inv := &Invitation{}
	var inviterID sql.NullInt64
	var role sql.NullString
	var acceptedAt, declinedAt sql.NullTime
	if err := row.Scan(
		&inv.ID, &inv.TeamID, &inviterID, &inv.Email, &role, &inv.Token,
		&acceptedAt, &declinedAt, &inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.InviterID = storage.Int64Ptr(inviterID)
	inv.Role = role.String
	inv.AcceptedAt = storage.TimePtr(acceptedAt)
	inv.DeclinedAt = storage.TimePtr(declinedAt)
	return inv, nil
}

// CreateInvitation inserts an invitation
func (s *Store) CreateInvitation(ctx context.Context, inv *Invitation) error {
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO team_invitations (team_id, inviter_id, email, role, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, inv.TeamID, storage.NullInt64(inv.InviterID), inv.Email, inv.Role, inv.Token, now, now).Scan(&inv.ID); err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetInvitation retrieves an invitation by id
func (s *Store) GetInvitation(ctx context.Context, id int64) (*Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM team_invitations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// GetInvitationByToken retrieves an invitation by its token
func (s *Store) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM team_invitations WHERE token = $1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// Invitations lists the pending invitations of a team, oldest first
func (s *Store) Invitations(ctx context.Context, teamID int64) ([]*Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM team_invitations WHERE team_id = $1 ORDER BY id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// DeleteInvitation removes an invitation
func (s *Store) DeleteInvitation(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM team_invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return expectOne(result, fmt.Sprintf("invitation %d", id))
}

// DeleteInvitations removes every invitation of a team
func (s *Store) DeleteInvitations(ctx context.Context, teamID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM team_invitations WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to delete invitations: %w", err)
	}
	return nil
}

// ClearStaleCurrentTeams unsets current_team_id for users pointing at a team
// that is gone, soft-deleted, or that they neither own nor belong to
func (s *Store) ClearStaleCurrentTeams(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET current_team_id = NULL, updated_at = $1
		WHERE current_team_id IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM teams t
			WHERE t.id = users.current_team_id
			  AND t.deleted_at IS NULL
			  AND (t.user_id = users.id OR EXISTS (
				SELECT 1 FROM team_user tu WHERE tu.team_id = t.id AND tu.user_id = users.id
			  ))
		  )
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale current teams: %w", err)
	}
	return result.RowsAffected()
}

func expectOne(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}
