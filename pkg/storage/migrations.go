package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration represents a database migration owned by one component.
//
// SQL may use the {{serial}} placeholder for an auto-incrementing primary key
// column; it is expanded for the target dialect before execution.
type Migration struct {
	Component   string
	Version     int
	Description string
	SQL         string
}

// Expand rewrites dialect placeholders in the migration SQL.
func (m Migration) Expand(dialect Dialect) string {
	serial := "BIGSERIAL PRIMARY KEY"
	if dialect == DialectSQLite {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return strings.ReplaceAll(m.SQL, "{{serial}}", serial)
}

// Migrate applies every pending migration from the given sets, in order.
// Each migration runs in its own transaction together with its bookkeeping row.
func Migrate(ctx context.Context, db *DB, sets ...[]Migration) (int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			component VARCHAR(64) NOT NULL,
			version INT NOT NULL,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			PRIMARY KEY (component, version)
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, set := range sets {
		for _, m := range set {
			if applied[migrationKey(m.Component, m.Version)] {
				continue
			}

			err := db.WithTx(ctx, func(tx *sql.Tx) error {
				if _, err := tx.ExecContext(ctx, m.Expand(db.Dialect())); err != nil {
					return fmt.Errorf("failed to execute migration %s/%d: %w", m.Component, m.Version, err)
				}
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO schema_migrations (component, version, description, applied_at) VALUES ($1, $2, $3, $4)",
					m.Component, m.Version, m.Description, time.Now().UTC(),
				); err != nil {
					return fmt.Errorf("failed to record migration %s/%d: %w", m.Component, m.Version, err)
				}
				return nil
			})
			if err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}

func appliedMigrations(ctx context.Context, db *DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT component, version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var component string
		var version int
		if err := rows.Scan(&component, &version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[migrationKey(component, version)] = true
	}
	return applied, rows.Err()
}

func migrationKey(component string, version int) string {
	return fmt.Sprintf("%s/%d", component, version)
}
