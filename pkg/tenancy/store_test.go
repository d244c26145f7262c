package tenancy

import (
	"context"
	"testing"

	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := storage.OpenTestDB(t, Migrations)
	return NewStore(db, nil)
}

func TestStore_CreateTenant(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tenant, err := store.CreateTenant(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.NotZero(t, tenant.ID)
	assert.Equal(t, "acme-corp", tenant.Slug)

	t.Run("slug collision", func(t *testing.T) {
		_, err := store.CreateTenant(ctx, "ACME corp!")
		assert.ErrorIs(t, err, ErrSlugTaken)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := store.CreateTenant(ctx, "   ")
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	})

	t.Run("names without ascii get distinct slugs", func(t *testing.T) {
		tokyo, err := store.CreateTenant(ctx, "東京")
		require.NoError(t, err)
		osaka, err := store.CreateTenant(ctx, "大阪")
		require.NoError(t, err)
		assert.NotEmpty(t, tokyo.Slug)
		assert.NotEqual(t, tokyo.Slug, osaka.Slug)

		found, err := store.GetTenantBySlug(ctx, tokyo.Slug)
		require.NoError(t, err)
		assert.Equal(t, tokyo.ID, found.ID)

		_, err = store.GetTenantBySlug(ctx, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("lookup by slug and id", func(t *testing.T) {
		bySlug, err := store.GetTenantBySlug(ctx, "acme-corp")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, bySlug.ID)

		byID, err := store.GetTenant(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", byID.Name)

		_, err = store.GetTenantBySlug(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStore_RenameTenant(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tenant, err := store.CreateTenant(ctx, "Acme")
	require.NoError(t, err)
	_, err = store.CreateTenant(ctx, "Globex")
	require.NoError(t, err)

	require.NoError(t, store.RenameTenant(ctx, tenant, "Acme Holdings"))
	assert.Equal(t, "acme-holdings", tenant.Slug)

	reloaded, err := store.GetTenantBySlug(ctx, "acme-holdings")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, reloaded.ID)

	err = store.RenameTenant(ctx, tenant, "globex")
	assert.ErrorIs(t, err, ErrSlugTaken)

	require.NoError(t, store.RenameTenant(ctx, tenant, "東京"))
	assert.Equal(t, Slugify("東京"), tenant.Slug)
	assert.NotEmpty(t, tenant.Slug)

	err = store.RenameTenant(ctx, &Tenant{ID: 999}, "Nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.RenameTenant(ctx, nil, "x"), storage.ErrInvalidArgument)
}

func TestStore_UserAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	acme, err := store.CreateTenant(ctx, "Acme")
	require.NoError(t, err)
	globex, err := store.CreateTenant(ctx, "Globex")
	require.NoError(t, err)

	require.NoError(t, store.AttachUser(ctx, globex.ID, 1))
	require.NoError(t, store.AttachUser(ctx, acme.ID, 1))
	require.NoError(t, store.AttachUser(ctx, acme.ID, 1), "attaching twice is a no-op")

	tenants, err := store.TenantsForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "Acme", tenants[0].Name)

	ok, err := store.CanAccessTenant(ctx, 1, acme)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CanAccessTenant(ctx, 2, acme)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CanAccessTenant(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DetachUser(ctx, acme.ID, 1))
	ok, err = store.CanAccessTenant(ctx, 1, acme)
	require.NoError(t, err)
	assert.False(t, ok)
}
