package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when a required reference is missing.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Config holds database connection settings
type Config struct {
	Driver      string
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultConfig returns a configuration for a local SQLite database.
func DefaultConfig() Config {
	return Config{
		Driver:      string(DialectSQLite),
		URL:         "file:tenantry.db?_foreign_keys=on",
		MaxConns:    10,
		MinConns:    2,
		Timeout:     10 * time.Second,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// Querier is the subset of *sql.DB and *sql.Tx the stores need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a connection pool together with its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, dialect: dialect}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect := Dialect(cfg.Driver)
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	pool, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// one writer at a time
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(cfg.MaxConns)
		pool.SetMaxIdleConns(cfg.MinConns)
	}
	pool.SetConnMaxLifetime(cfg.MaxLifetime)
	pool.SetConnMaxIdleTime(cfg.MaxIdleTime)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(pool, dialect), nil
}

// Dialect returns the SQL dialect of the pool.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
