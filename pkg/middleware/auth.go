package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
	"github.com/platinummonkey/tenantry/pkg/httputil"
	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/users"
)

// ErrUnauthenticated is returned by a UserLoader when the request carries
// no credentials
var ErrUnauthenticated = errors.New("unauthenticated")

// UserLoader identifies the user behind a request. Credential handling
// belongs to the host application.
type UserLoader interface {
	LoadUser(r *http.Request) (*users.User, error)
}

// UserLoaderFunc adapts a function to UserLoader
type UserLoaderFunc func(r *http.Request) (*users.User, error)

// LoadUser calls f(r)
func (f UserLoaderFunc) LoadUser(r *http.Request) (*users.User, error) {
	return f(r)
}

// Authenticator checks an email and password
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
}

// BasicAuth loads the user from HTTP basic credentials
func BasicAuth(a Authenticator) UserLoader {
	return UserLoaderFunc(func(r *http.Request) (*users.User, error) {
		email, password, ok := r.BasicAuth()
		if !ok {
			return nil, ErrUnauthenticated
		}
		return a.Authenticate(r.Context(), email, password)
	})
}

// WithUser adds the authenticated user to the context, together with its id
// for the logger and audit trail
func WithUser(ctx context.Context, u *users.User) context.Context {
	ctx = contextkeys.WithUser(ctx, u)
	return contextkeys.WithUserID(ctx, strconv.FormatInt(u.ID, 10))
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(ctx context.Context) *users.User {
	u, _ := contextkeys.User(ctx).(*users.User)
	return u
}

// AuthMiddleware attaches the authenticated user to each request
type AuthMiddleware struct {
	loader   UserLoader
	optional bool
	logger   *observability.Logger
}

// NewAuthMiddleware creates an authentication middleware. When optional is
// true, requests without credentials pass through anonymously.
func NewAuthMiddleware(loader UserLoader, optional bool, logger *observability.Logger) *AuthMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AuthMiddleware{loader: loader, optional: optional, logger: logger}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.loader.LoadUser(r)
		if errors.Is(err, ErrUnauthenticated) && m.optional {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil || u == nil {
			if err != nil && !errors.Is(err, ErrUnauthenticated) {
				m.logger.WithError(err).Debug("authentication failed")
			}
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if u.Trashed() || !u.IsActive {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "account disabled")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}
