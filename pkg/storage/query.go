package storage

import (
	"fmt"
	"strings"
)

// Condition is a single predicate of a Query.
type Condition struct {
	Column string
	Value  any
	IsNull bool
}

// Query is a minimal immutable SELECT builder. Every modifier returns a copy,
// so a scoped query never leaks conditions back into the query it came from.
type Query struct {
	table      string
	columns    []string
	conditions []Condition
	orderBy    []string
	limit      int
}

// From starts a query against table selecting columns.
func From(table string, columns ...string) *Query {
	return &Query{table: table, columns: append([]string(nil), columns...)}
}

func (q *Query) clone() *Query {
	c := *q
	c.columns = append([]string(nil), q.columns...)
	c.conditions = append([]Condition(nil), q.conditions...)
	c.orderBy = append([]string(nil), q.orderBy...)
	return &c
}

// Where adds an equality predicate.
func (q *Query) Where(column string, value any) *Query {
	c := q.clone()
	c.conditions = append(c.conditions, Condition{Column: column, Value: value})
	return c
}

// WhereNull adds an IS NULL predicate.
func (q *Query) WhereNull(column string) *Query {
	c := q.clone()
	c.conditions = append(c.conditions, Condition{Column: column, IsNull: true})
	return c
}

// OrderBy appends an ORDER BY expression.
func (q *Query) OrderBy(expr string) *Query {
	c := q.clone()
	c.orderBy = append(c.orderBy, expr)
	return c
}

// Limit caps the number of returned rows. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

// Table returns the queried table.
func (q *Query) Table() string {
	return q.table
}

// Conditions returns a copy of the predicates.
func (q *Query) Conditions() []Condition {
	return append([]Condition(nil), q.conditions...)
}

// HasCondition reports whether a predicate on column exists.
func (q *Query) HasCondition(column string) bool {
	for _, cond := range q.conditions {
		if cond.Column == column {
			return true
		}
	}
	return false
}

// SQL renders the statement with $n placeholders and its arguments.
func (q *Query) SQL() (string, []any) {
	var b strings.Builder
	columns := "*"
	if len(q.columns) > 0 {
		columns = strings.Join(q.columns, ", ")
	}
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, q.table)

	args := make([]any, 0, len(q.conditions))
	for i, cond := range q.conditions {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if cond.IsNull {
			fmt.Fprintf(&b, "%s IS NULL", cond.Column)
			continue
		}
		args = append(args, cond.Value)
		fmt.Fprintf(&b, "%s = $%d", cond.Column, len(args))
	}

	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}

	return b.String(), args
}
