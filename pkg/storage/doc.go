// Package storage is the relational persistence layer shared by the tenantry
// components.
//
// # Overview
//
// The package owns connection management, transactions, schema migrations and
// a small SELECT builder. Domain packages (users, teams, rbac, tenancy) keep
// their own SQL and table definitions and only depend on the primitives here.
//
// Two dialects are supported through database/sql:
//
//   - postgres (github.com/lib/pq) for production deployments
//   - sqlite3 (github.com/mattn/go-sqlite3) for the admin CLI, local use and tests
//
// All statements use $n placeholders, which both drivers accept.
//
// # Transactions
//
//	err := db.WithTx(ctx, func(tx *sql.Tx) error {
//		// every statement here uses tx
//		return nil
//	})
//
// The transaction commits only when the callback returns nil.
//
// # Migrations
//
// Each component exposes a []Migration. Migrate records applied versions per
// component in schema_migrations:
//
//	storage.Migrate(ctx, db, tenancy.Migrations, users.Migrations, teams.Migrations, rbac.Migrations)
//
// # Queries
//
// Query is immutable. Adding a condition returns a new value, which lets the
// tenant scope enforcer narrow a query without mutating the caller's copy:
//
//	q := storage.From("users", "id", "name").WhereNull("deleted_at")
//	scoped := q.Where("tenant_id", 7)
//	stmt, args := scoped.SQL()
//
// # Errors
//
// ErrNotFound is returned by lookups that match no row. IsUniqueViolation
// recognises unique constraint errors from both drivers so callers can turn a
// duplicate insert into an update.
package storage
