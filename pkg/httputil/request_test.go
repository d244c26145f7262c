package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestPathInt64(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    int64
		wantOK  bool
		wantErr bool
	}{
		{name: "valid", vars: map[string]string{"team_id": "42"}, want: 42, wantOK: true},
		{name: "absent", vars: map[string]string{}, wantOK: false},
		{name: "malformed", vars: map[string]string{"team_id": "abc"}, wantOK: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)

			got, ok, err := PathInt64(req, "team_id")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathString(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"tenant": "acme"})

	slug, ok := PathString(req, "tenant")
	assert.True(t, ok)
	assert.Equal(t, "acme", slug)

	_, ok = PathString(req, "team_id")
	assert.False(t, ok)
}
