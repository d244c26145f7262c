package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

const userColumns = `id, name, email, password, is_active, current_team_id, tenant_id, created_at, updated_at, deleted_at`

var userColumnList = strings.Split(strings.ReplaceAll(userColumns, " ", ""), ",")

// Store persists users. It works on a pool or inside a transaction.
type Store struct {
	db storage.Querier
}

// NewStore creates a user store
func NewStore(db storage.Querier) *Store {
	return &Store{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	var currentTeamID, tenantID sql.NullInt64
	var deletedAt sql.NullTime
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.IsActive,
		&currentTeamID, &tenantID, &u.CreatedAt, &u.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}
	u.CurrentTeamID = storage.Int64Ptr(currentTeamID)
	u.TenantID = storage.Int64Ptr(tenantID)
	u.DeletedAt = storage.TimePtr(deletedAt)
	return u, nil
}

// Create inserts a user and fills in its id and timestamps
func (s *Store) Create(ctx context.Context, u *User) error {
	if u == nil {
		return fmt.Errorf("user is required: %w", storage.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password, is_active, current_team_id, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, u.Name, u.Email, u.Password, u.IsActive,
		storage.NullInt64(u.CurrentTeamID), storage.NullInt64(u.TenantID), u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("failed to create user %s: %w", u.Email, ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get retrieves a user by id, including soft-deleted users
func (s *Store) Get(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves an active (not soft-deleted) user by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Query returns the base query over users that are not soft-deleted
func (s *Store) Query() *storage.Query {
	return storage.From("users", userColumnList...).WhereNull("deleted_at").OrderBy("id ASC")
}

// Find executes a query built from Query
func (s *Store) Find(ctx context.Context, q *storage.Query) ([]*User, error) {
	stmt, args := q.SQL()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update saves the name, email and active flag
func (s *Store) Update(ctx context.Context, u *User) error {
	if u == nil {
		return fmt.Errorf("user is required: %w", storage.ErrInvalidArgument)
	}
	u.UpdatedAt = time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, email = $2, is_active = $3, updated_at = $4 WHERE id = $5`,
		u.Name, u.Email, u.IsActive, u.UpdatedAt, u.ID,
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("failed to update user %s: %w", u.Email, ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdatePassword stores a new password hash
func (s *Store) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = $1, updated_at = $2 WHERE id = $3`,
		hash, time.Now().UTC(), userID,
	); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetCurrentTeam persists the user's current team. A nil teamID clears it.
func (s *Store) SetCurrentTeam(ctx context.Context, userID int64, teamID *int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET current_team_id = $1, updated_at = $2 WHERE id = $3`,
		storage.NullInt64(teamID), time.Now().UTC(), userID,
	); err != nil {
		return fmt.Errorf("failed to set current team: %w", err)
	}
	return nil
}

// SetCurrentTeamIfUnset sets the current team only when none is stored and
// reports whether the row changed
func (s *Store) SetCurrentTeamIfUnset(ctx context.Context, userID, teamID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET current_team_id = $1, updated_at = $2 WHERE id = $3 AND current_team_id IS NULL`,
		teamID, time.Now().UTC(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to initialize current team: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ClearCurrentTeam unsets current_team_id for every user pointing at teamID,
// optionally restricted to userIDs. It returns the number of users changed.
func (s *Store) ClearCurrentTeam(ctx context.Context, teamID int64, userIDs ...int64) (int64, error) {
	stmt := `UPDATE users SET current_team_id = NULL, updated_at = $1 WHERE current_team_id = $2`
	args := []any{time.Now().UTC(), teamID}
	if len(userIDs) > 0 {
		placeholders := make([]string, len(userIDs))
		for i, id := range userIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		stmt += ` AND id IN (` + strings.Join(placeholders, ", ") + `)`
	}

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear current team: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// SoftDelete marks the user deleted
func (s *Store) SoftDelete(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, userID,
	); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Restore undoes a soft delete
func (s *Store) Restore(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = NULL, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), userID,
	); err != nil {
		return fmt.Errorf("failed to restore user: %w", err)
	}
	return nil
}
