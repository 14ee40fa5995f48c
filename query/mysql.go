package query

import (
	"context"

	"github.com/syssam/portsql/dialect"
)

// MySQL binds positional ? parameters and reads the generated key of an
// insert from the driver.
type MySQL struct{ Base }

// Name implements Dialect.
func (MySQL) Name() string { return dialect.MySQL }

// QuoteChars implements Dialect.
func (MySQL) QuoteChars() (string, string) { return "`", "`" }

// Capabilities implements Dialect.
func (MySQL) Capabilities() Capabilities { return Capabilities{BackslashEscapes: true} }

// BuildLimitClause implements Dialect. An offset without a limit uses the
// largest row count MySQL accepts.
func (MySQL) BuildLimitClause(s *Statement) string {
	return limitOffset(s, "18446744073709551615")
}

// Execute implements Dialect.
func (MySQL) Execute(ctx context.Context, s *Statement) (Result, error) {
	return executeLastID(ctx, s)
}

// executeLastID runs inserts, updates and deletes with Exec, and selects
// as a reader.
func executeLastID(ctx context.Context, s *Statement) (Result, error) {
	p := s.Prepared()
	if s.op == OpSelect {
		rs, err := s.RunQuery(ctx, p.SQL, p.Args)
		if err != nil {
			return nil, err
		}
		return &rowsResult{Rowset: rs, stmt: s}, nil
	}
	res, err := s.RunExec(ctx, p.SQL, p.Args)
	if err != nil {
		return nil, err
	}
	return &execResult{stmt: s, res: res}, nil
}

var _ Dialect = MySQL{}
