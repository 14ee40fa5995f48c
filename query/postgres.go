package query

import (
	"context"
	"strconv"

	"github.com/syssam/portsql/dialect"
)

// Postgres binds positional $n parameters and captures the generated key of
// an insert with a RETURNING clause.
type Postgres struct{ Base }

// Name implements Dialect.
func (Postgres) Name() string { return dialect.Postgres }

// QuoteChars implements Dialect.
func (Postgres) QuoteChars() (string, string) { return `"`, `"` }

// Capabilities implements Dialect.
func (Postgres) Capabilities() Capabilities {
	return Capabilities{
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
}

// BuildLimitClause implements Dialect.
func (Postgres) BuildLimitClause(s *Statement) string { return limitOffset(s, "ALL") }

// Prepare implements Dialect.
func (Postgres) Prepare(ctx context.Context, s *Statement, sql string) (*Prepared, error) {
	q, args, err := s.BindArgs(sql)
	if err != nil {
		return nil, err
	}
	p := &Prepared{SQL: q, Args: args}
	if s.op != OpInsert {
		return p, nil
	}
	var key *keyColumn
	switch len(s.pkey) {
	case 0:
		key, err = lookupKey(ctx, s, "current_schema()")
		if err != nil {
			s.logger.WarnContext(ctx, "primary key lookup failed, insert id will not be available",
				"id", s.id, "table", s.baseTable(), "error", err)
			return p, nil
		}
	case 1:
		key = &keyColumn{name: s.pkey[0]}
	}
	if key == nil {
		s.logger.InfoContext(ctx, "no single-column primary key found, insert id will not be available",
			"id", s.id, "table", s.baseTable())
		return p, nil
	}
	p.SQL += " RETURNING " + s.protect(key.name) + " AS " + InsertIDCol
	p.Handle = key
	return p, nil
}

// Execute implements Dialect.
func (Postgres) Execute(ctx context.Context, s *Statement) (Result, error) {
	return executeCaptured(ctx, s)
}

var _ Dialect = Postgres{}
