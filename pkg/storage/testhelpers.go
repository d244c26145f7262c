package storage

import (
	"context"
	"database/sql"
	"testing"
)

// OpenTestDB returns a migrated in-memory SQLite database that is closed when
// the test finishes.
func OpenTestDB(t testing.TB, sets ...[]Migration) *DB {
	t.Helper()

	pool, err := sql.Open(string(DialectSQLite), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { pool.Close() })

	db := New(pool, DialectSQLite)
	if _, err := Migrate(context.Background(), db, sets...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}
