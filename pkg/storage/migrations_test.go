package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var widgetMigrations = []Migration{
	{
		Component:   "widgets",
		Version:     1,
		Description: "Create widgets table",
		SQL: `
			CREATE TABLE widgets (
				id {{serial}},
				name VARCHAR(255) NOT NULL
			);
		`,
	},
	{
		Component:   "widgets",
		Version:     2,
		Description: "Index widget names",
		SQL:         `CREATE UNIQUE INDEX idx_widgets_name ON widgets(name);`,
	},
}

func TestMigration_Expand(t *testing.T) {
	m := widgetMigrations[0]
	assert.Contains(t, m.Expand(DialectPostgres), "id BIGSERIAL PRIMARY KEY")
	assert.Contains(t, m.Expand(DialectSQLite), "id INTEGER PRIMARY KEY AUTOINCREMENT")
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := OpenTestDB(t)

	applied, err := Migrate(ctx, db, widgetMigrations)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	t.Run("is idempotent", func(t *testing.T) {
		applied, err := Migrate(ctx, db, widgetMigrations)
		require.NoError(t, err)
		assert.Equal(t, 0, applied)
	})

	t.Run("tables are usable", func(t *testing.T) {
		res, err := db.ExecContext(ctx, "INSERT INTO widgets (name) VALUES ($1)", "gear")
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("failed migration is not recorded", func(t *testing.T) {
		broken := []Migration{{Component: "broken", Version: 1, Description: "bad", SQL: "CREATE TABLE ("}}
		_, err := Migrate(ctx, db, broken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute migration broken/1")

		var count int
		require.NoError(t, db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE component = $1", "broken").Scan(&count))
		assert.Equal(t, 0, count)
	})
}
