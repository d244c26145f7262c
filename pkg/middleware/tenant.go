package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
	"github.com/platinummonkey/tenantry/pkg/httputil"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
)

// TenantLookup finds tenants by id or slug
type TenantLookup interface {
	GetTenant(ctx context.Context, id int64) (*tenancy.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenancy.Tenant, error)
}

// TenantContext resolves the {tenant} (slug) or {tenant_id} route variable
// and stores the tenant in the request context, where
// tenancy.RequestContext finds it. Routes without either variable pass
// through unchanged.
func TenantContext(tenants TenantLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, byID, err := httputil.PathInt64(r, "tenant_id")
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid tenant id")
				return
			}

			var tenant *tenancy.Tenant
			if byID {
				tenant, err = tenants.GetTenant(r.Context(), id)
			} else if slug, ok := httputil.PathString(r, "tenant"); ok {
				tenant, err = tenants.GetTenantBySlug(r.Context(), slug)
			} else {
				next.ServeHTTP(w, r)
				return
			}

			if errors.Is(err, storage.ErrNotFound) {
				httputil.WriteErrorMessage(w, http.StatusNotFound, "tenant not found")
				return
			}
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to resolve tenant")
				return
			}

			ctx := contextkeys.WithTenant(r.Context(), tenant)
			ctx = contextkeys.WithTenantID(ctx, strconv.FormatInt(tenant.ID, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
