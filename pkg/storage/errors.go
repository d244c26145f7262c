package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err was raised by a unique or primary key
// constraint in either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// NullInt64 converts an optional id into a value the drivers accept.
func NullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Int64Ptr unwraps a scanned nullable integer.
func Int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// TimePtr unwraps a scanned nullable timestamp.
func TimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
