package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestHealthChecker_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy database and redis", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		status := NewHealthChecker(db, client, "test").Check(ctx)
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, "test", status.Version)
		assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down is unhealthy", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		status := NewHealthChecker(db, nil, "").Check(ctx)
		assert.Equal(t, StatusUnhealthy, status.Status)
		assert.Equal(t, "connection refused", status.Dependencies["database"].Message)
	})

	t.Run("redis down is degraded", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		mr, err := miniredis.Run()
		require.NoError(t, err)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		status := NewHealthChecker(db, client, "").Check(ctx)
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})
}

func TestHealthChecker_Routes(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("down"))

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(db, nil, ""))

	t.Run("liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
		assert.Equal(t, StatusUnhealthy, status.Status)
	})
}
