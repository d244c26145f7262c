package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/storage"
)

// Store manages tenants and their user membership
type Store struct {
	db     storage.Querier
	logger *observability.Logger
}

// NewStore creates a tenant store
func NewStore(db storage.Querier, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Store{db: db, logger: logger}
}

// WithQuerier returns a store sharing the logger but running on q,
// typically a transaction
func (s *Store) WithQuerier(q storage.Querier) *Store {
	return &Store{db: q, logger: s.logger}
}

// CreateTenant inserts a tenant, deriving its slug from the name
func (s *Store) CreateTenant(ctx context.Context, name string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required: %w", storage.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	tenant := &Tenant{Name: name, Slug: Slugify(name), CreatedAt: now, UpdatedAt: now}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tenants (name, slug, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		tenant.Name, tenant.Slug, tenant.CreatedAt, tenant.UpdatedAt,
	).Scan(&tenant.ID)
	if storage.IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create tenant %q: %w", tenant.Slug, ErrSlugTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{"tenant_id": tenant.ID, "slug": tenant.Slug}).Info("tenant created")
	return tenant, nil
}

// RenameTenant changes the name and re-derives the slug
func (s *Store) RenameTenant(ctx context.Context, tenant *Tenant, name string) error {
	if tenant == nil {
		return fmt.Errorf("tenant is required: %w", storage.ErrInvalidArgument)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tenant name is required: %w", storage.ErrInvalidArgument)
	}

	slug := Slugify(name)
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET name = $1, slug = $2, updated_at = $3 WHERE id = $4`,
		name, slug, now, tenant.ID,
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("failed to rename tenant to %q: %w", slug, ErrSlugTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to rename tenant: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("tenant %d: %w", tenant.ID, storage.ErrNotFound)
	}

	tenant.Name, tenant.Slug, tenant.UpdatedAt = name, slug, now
	return nil
}

const tenantColumns = `id, name, slug, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*Tenant, error) {
	t := &Tenant{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTenant retrieves a tenant by id
func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	t, err := scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// GetTenantBySlug retrieves a tenant by slug
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	t, err := scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %q: %w", slug, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// AttachUser grants a user access to a tenant. Attaching twice is a no-op.
func (s *Store) AttachUser(ctx context.Context, tenantID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_user (tenant_id, user_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`, tenantID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to attach user to tenant: %w", err)
	}
	return nil
}

// DetachUser revokes a user's access to a tenant
func (s *Store) DetachUser(ctx context.Context, tenantID, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_user WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID,
	); err != nil {
		return fmt.Errorf("failed to detach user from tenant: %w", err)
	}
	return nil
}

// TenantsForUser lists the tenants a user can access, ordered by name
func (s *Store) TenantsForUser(ctx context.Context, userID int64) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM tenants t
		JOIN tenant_user tu ON tu.tenant_id = t.id
		WHERE tu.user_id = $1
		ORDER BY t.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// CanAccessTenant reports whether a user is attached to the tenant
func (s *Store) CanAccessTenant(ctx context.Context, userID int64, tenant *Tenant) (bool, error) {
	if tenant == nil {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tenant_user WHERE tenant_id = $1 AND user_id = $2`, tenant.ID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tenant access: %w", err)
	}
	return true, nil
}
