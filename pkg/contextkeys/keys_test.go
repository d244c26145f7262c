package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Tenant(ctx))
	assert.Nil(t, User(ctx))
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUserID(ctx))

	type tenant struct{ slug string }
	acme := &tenant{slug: "acme"}

	ctx = WithTenant(ctx, acme)
	ctx = WithUser(ctx, "ada")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "7")
	ctx = WithTenantID(ctx, "3")

	assert.Same(t, acme, Tenant(ctx))
	assert.Equal(t, "ada", User(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "7", GetUserID(ctx))
	assert.Equal(t, "3", GetTenantID(ctx))
}

func TestKeysDoNotCollideWithStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "tenant", "spoofed")
	assert.Nil(t, Tenant(ctx))
}
