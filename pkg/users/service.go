package users

import (
	"context"

	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
)

// Service applies tenant scoping to user reads and writes
type Service struct {
	store *Store
	scope *tenancy.ScopeEnforcer
}

// NewService creates a user service
func NewService(store *Store, scope *tenancy.ScopeEnforcer) *Service {
	return &Service{store: store, scope: scope}
}

// Store returns the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// WithQuerier returns a service sharing the scope enforcer but running on q,
// typically a transaction
func (s *Service) WithQuerier(q storage.Querier) *Service {
	return &Service{store: NewStore(q), scope: s.scope}
}

// Create stamps the active tenant on u and inserts it
func (s *Service) Create(ctx context.Context, ec tenancy.ExecutionContext, u *User) error {
	s.scope.AssignTenantOnCreate(ctx, u, ec)
	return s.store.Create(ctx, u)
}

// List returns the users visible in the execution context
func (s *Service) List(ctx context.Context, ec tenancy.ExecutionContext) ([]*User, error) {
	return s.store.Find(ctx, s.scope.ScopeQuery(ctx, s.store.Query(), ec))
}
