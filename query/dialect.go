package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syssam/portsql/dialect"
)

// Capabilities describes how a dialect's driver binds parameters.
type Capabilities struct {
	// NamedArgs reports that the driver binds sql.Named arguments by name.
	// When false, named placeholders are rewritten into positional marks.
	NamedArgs bool
	// Placeholder renders the n-th (1-based) positional mark. Nil means "?".
	Placeholder func(n int) string
	// BackslashEscapes reports that a backslash escapes the next character
	// inside quoted text, as in MySQL's default sql_mode.
	BackslashEscapes bool
}

// Prepared is the finalized form of a statement, owned by its dialect
// between Prepare and Execute.
type Prepared struct {
	SQL  string
	Args []any
	// Handle holds dialect-specific execution state.
	Handle any
}

// Dialect is the capability set a database engine plugs into a Statement.
// Implementations embed Base and override what differs.
type Dialect interface {
	// Name returns the dialect name, one of the dialect package constants.
	Name() string
	// BindPrefix returns the character that introduces a named placeholder.
	BindPrefix() string
	// QuoteChars returns the identifier quote pair. Empty disables quoting.
	QuoteChars() (open, close string)
	Capabilities() Capabilities
	// BuildTableClause renders the table list, surrounded by single spaces.
	BuildTableClause(s *Statement) string
	// BuildLimitClause renders the pagination clause, or "" if none applies.
	BuildLimitClause(s *Statement) string
	// Prepare finalizes the built SQL of s.
	Prepare(ctx context.Context, s *Statement, sql string) (*Prepared, error)
	// Execute runs the prepared statement.
	Execute(ctx context.Context, s *Statement) (Result, error)
	// InitSession configures a fresh session for this dialect.
	InitSession(ctx context.Context, ex dialect.ExecQuerier) error
}

// Base implements the default Dialect behavior: no identifier quoting,
// ":" placeholders bound by name, no pagination clause, and execution
// through a reader whose rows are materialized.
type Base struct{}

// Name implements Dialect.
func (Base) Name() string { return "base" }

// BindPrefix implements Dialect.
func (Base) BindPrefix() string { return ":" }

// QuoteChars implements Dialect.
func (Base) QuoteChars() (string, string) { return "", "" }

// Capabilities implements Dialect.
func (Base) Capabilities() Capabilities { return Capabilities{NamedArgs: true} }

// BuildTableClause implements Dialect. "users as u" renders as "users u".
func (Base) BuildTableClause(s *Statement) string {
	tables := make([]string, len(s.tables))
	for i, t := range s.tables {
		tables[i] = s.protectTable(t)
	}
	return " " + strings.Join(tables, ", ") + " "
}

// BuildLimitClause implements Dialect.
func (Base) BuildLimitClause(*Statement) string { return "" }

// Prepare implements Dialect.
func (Base) Prepare(_ context.Context, s *Statement, sql string) (*Prepared, error) {
	q, args, err := s.BindArgs(sql)
	if err != nil {
		return nil, err
	}
	return &Prepared{SQL: q, Args: args}, nil
}

// Execute implements Dialect.
func (Base) Execute(ctx context.Context, s *Statement) (Result, error) {
	p := s.Prepared()
	rs, err := s.RunQuery(ctx, p.SQL, p.Args)
	if err != nil {
		return nil, err
	}
	return &rowsResult{Rowset: rs, stmt: s}, nil
}

// InitSession implements Dialect.
func (Base) InitSession(context.Context, dialect.ExecQuerier) error { return nil }

// offsetFetch renders the ANSI OFFSET/FETCH pagination clause.
func offsetFetch(s *Statement) string {
	limit, offset := s.Pagination()
	var b strings.Builder
	switch {
	case offset >= 0:
		fmt.Fprintf(&b, "OFFSET %d ROWS", offset)
	case limit >= 0:
		b.WriteString("OFFSET 0 ROWS")
	}
	if limit >= 0 {
		fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", limit)
	}
	return b.String()
}

// limitOffset renders "LIMIT n OFFSET m". all is the row count used when
// only an offset is set.
func limitOffset(s *Statement, all string) string {
	limit, offset := s.Pagination()
	switch {
	case limit >= 0 && offset >= 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit >= 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset >= 0:
		return fmt.Sprintf("LIMIT %s OFFSET %d", all, offset)
	}
	return ""
}

var registry = struct {
	sync.RWMutex
	m map[string]Dialect
}{
	m: map[string]Dialect{
		"base":            Base{},
		dialect.Oracle:    Oracle{},
		dialect.SQLServer: SQLServer{},
		dialect.Postgres:  Postgres{},
		dialect.MySQL:     MySQL{},
		dialect.SQLite:    SQLite{},
	},
}

// For returns the dialect registered under name.
func For(name string) (Dialect, error) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.m[name]
	if !ok {
		return nil, fmt.Errorf("query: unknown dialect %q", name)
	}
	return d, nil
}

// Register makes a dialect available by name. It panics if name is empty,
// d is nil or name is already registered.
func Register(name string, d Dialect) {
	registry.Lock()
	defer registry.Unlock()
	if name == "" || d == nil {
		panic("query: Register called with an empty name or nil dialect")
	}
	if _, dup := registry.m[name]; dup {
		panic("query: Register called twice for dialect " + name)
	}
	registry.m[name] = d
}

// Dialects returns the sorted names of the registered dialects.
func Dialects() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
