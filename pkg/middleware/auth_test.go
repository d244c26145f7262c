package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantry/pkg/contextkeys"
	"github.com/platinummonkey/tenantry/pkg/users"
)

type stubAuthenticator struct {
	users map[string]*users.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, email, password string) (*users.User, error) {
	u, ok := s.users[email]
	if !ok || password != "secret" {
		return nil, errors.New("invalid credentials")
	}
	return u, nil
}

func echoUser(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		if u == nil {
			w.Write([]byte("anonymous"))
			return
		}
		assert.Equal(t, "7", contextkeys.GetUserID(r.Context()))
		w.Write([]byte(u.Email))
	})
}

func TestAuthMiddleware(t *testing.T) {
	deleted := time.Now()
	loader := BasicAuth(stubAuthenticator{users: map[string]*users.User{
		"ada@example.com":      {ID: 7, Email: "ada@example.com", IsActive: true},
		"inactive@example.com": {ID: 8, Email: "inactive@example.com"},
		"trashed@example.com":  {ID: 9, Email: "trashed@example.com", IsActive: true, DeletedAt: &deleted},
	}})

	tests := []struct {
		name       string
		optional   bool
		email      string
		password   string
		wantStatus int
		wantBody   string
	}{
		{name: "valid credentials", email: "ada@example.com", password: "secret", wantStatus: http.StatusOK, wantBody: "ada@example.com"},
		{name: "wrong password", email: "ada@example.com", password: "nope", wantStatus: http.StatusUnauthorized},
		{name: "no credentials", wantStatus: http.StatusUnauthorized},
		{name: "no credentials optional", optional: true, wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "bad credentials optional", optional: true, email: "ada@example.com", password: "nope", wantStatus: http.StatusUnauthorized},
		{name: "inactive user", email: "inactive@example.com", password: "secret", wantStatus: http.StatusUnauthorized},
		{name: "trashed user", email: "trashed@example.com", password: "secret", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(loader, tt.optional, nil).Handler(echoUser(t))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.email != "" {
				req.SetBasicAuth(tt.email, tt.password)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestWithUser(t *testing.T) {
	u := &users.User{ID: 42}
	ctx := WithUser(context.Background(), u)

	require.Same(t, u, UserFromContext(ctx))
	assert.Equal(t, "42", contextkeys.GetUserID(ctx))
	assert.Nil(t, UserFromContext(context.Background()))
}
