package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		pool, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer pool.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		db := New(pool, DialectPostgres)
		err = db.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "UPDATE users SET name = $1", "x")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		pool, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer pool.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		db := New(pool, DialectPostgres)
		err = db.WithTx(ctx, func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		pool, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer pool.Close()

		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		db := New(pool, DialectPostgres)
		err = db.WithTx(ctx, func(tx *sql.Tx) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpen_SQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = ":memory:"

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DialectSQLite, db.Dialect())
}

func TestIsUniqueViolation(t *testing.T) {
	t.Run("postgres unique violation", func(t *testing.T) {
		err := &pq.Error{Code: "23505"}
		assert.True(t, IsUniqueViolation(err))
		assert.True(t, IsUniqueViolation(errors.Join(errors.New("insert"), err)))
	})

	t.Run("postgres other error", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	})

	t.Run("sqlite unique violation", func(t *testing.T) {
		db := OpenTestDB(t, []Migration{{
			Component: "test", Version: 1, Description: "pairs",
			SQL: "CREATE TABLE pairs (a INT NOT NULL, b INT NOT NULL, UNIQUE (a, b))",
		}})

		ctx := context.Background()
		_, err := db.ExecContext(ctx, "INSERT INTO pairs (a, b) VALUES ($1, $2)", 1, 2)
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, "INSERT INTO pairs (a, b) VALUES ($1, $2)", 1, 2)
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("nil and plain errors", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(nil))
		assert.False(t, IsUniqueViolation(errors.New("duplicate")))
	})
}

func TestNullableHelpers(t *testing.T) {
	id := int64(9)
	assert.Nil(t, NullInt64(nil))
	assert.Equal(t, int64(9), NullInt64(&id))

	assert.Nil(t, Int64Ptr(sql.NullInt64{}))
	assert.Equal(t, int64(4), *Int64Ptr(sql.NullInt64{Int64: 4, Valid: true}))
	assert.Nil(t, TimePtr(sql.NullTime{}))
}
