package query

import (
	"context"

	"github.com/syssam/portsql/dialect"
)

// SQLite binds positional ? parameters and reads the generated key of an
// insert from the driver.
type SQLite struct{ Base }

// Name implements Dialect.
func (SQLite) Name() string { return dialect.SQLite }

// QuoteChars implements Dialect.
func (SQLite) QuoteChars() (string, string) { return `"`, `"` }

// Capabilities implements Dialect.
func (SQLite) Capabilities() Capabilities { return Capabilities{} }

// BuildLimitClause implements Dialect.
func (SQLite) BuildLimitClause(s *Statement) string { return limitOffset(s, "-1") }

// InitSession implements Dialect.
func (SQLite) InitSession(ctx context.Context, ex dialect.ExecQuerier) error {
	return ex.Exec(ctx, "PRAGMA foreign_keys = ON", []any{}, nil)
}

// Execute implements Dialect.
func (SQLite) Execute(ctx context.Context, s *Statement) (Result, error) {
	return executeLastID(ctx, s)
}

var _ Dialect = SQLite{}
