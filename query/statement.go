package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/portsql"
	"github.com/syssam/portsql/config"
	"github.com/syssam/portsql/dialect"
	"github.com/syssam/portsql/schema/field"
)

// Op is the operation kind of a statement.
type Op uint8

// Operation kinds.
const (
	OpSelect Op = iota + 1
	OpInsert
	OpUpdate
	OpDelete
)

var opNames = [...]string{
	OpSelect: "select",
	OpInsert: "insert",
	OpUpdate: "update",
	OpDelete: "delete",
}

func (o Op) String() string {
	if o == 0 || int(o) >= len(opNames) {
		return "invalid"
	}
	return opNames[o]
}

// JoinType is the kind of a join clause.
type JoinType string

// Join kinds.
const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
)

// Reserved binding names.
const (
	OutParam    = "dtvalue"
	InsertIDCol = "insert_id"
)

type state uint8

const (
	stateBuilding state = iota
	statePrepared
	stateDone
)

// operators lists the accepted comparison operators.
var operators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true,
	"LIKE": true, "NOT LIKE": true, "IS": true, "IS NOT": true,
}

type (
	assignment struct {
		field string
		value string
	}
	condition struct {
		conj  string // AND or OR
		group int    // 1 opens a group, -1 closes it
		sql   string
	}
)

// Statement builds and executes one SQL statement for a dialect. A statement
// is prepared and executed once; it is not safe for concurrent use.
type Statement struct {
	id      string
	dialect Dialect
	ex      dialect.ExecQuerier
	op      Op
	timeout time.Duration
	logger  *slog.Logger

	tables   []string
	fields   []string
	sets     []assignment
	wheres   []condition
	joins    []string
	groupBy  []string
	orders   []string
	limit    int
	offset   int
	distinct bool
	pkey     []string
	keyCache *KeyCache
	bindings []*Binding
	seq      int
	err      error

	state    state
	prepared *Prepared
}

// Option configures a Statement.
type Option func(*Statement)

// WithTimeout bounds every command the statement issues, catalog lookups
// included. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Statement) {
		s.timeout = d
	}
}

// WithConfig applies the command timeout of the database configuration.
func WithConfig(cfg config.Database) Option {
	return WithTimeout(cfg.CommandTimeout)
}

// WithKeyCache caches the primary key lookups of inserts in c.
func WithKeyCache(c *KeyCache) Option {
	return func(s *Statement) {
		s.keyCache = c
	}
}

// WithLogger sets the logger of the statement. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Statement) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a statement of kind op that runs on ex.
func New(ex dialect.ExecQuerier, d Dialect, op Op, opts ...Option) *Statement {
	s := &Statement{
		id:      uuid.NewString(),
		dialect: d,
		ex:      ex,
		op:      op,
		logger:  slog.Default(),
		limit:   -1,
		offset:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns a select statement.
func Select(ex dialect.ExecQuerier, d Dialect, opts ...Option) *Statement {
	return New(ex, d, OpSelect, opts...)
}

// Insert returns an insert statement.
func Insert(ex dialect.ExecQuerier, d Dialect, opts ...Option) *Statement {
	return New(ex, d, OpInsert, opts...)
}

// Update returns an update statement.
func Update(ex dialect.ExecQuerier, d Dialect, opts ...Option) *Statement {
	return New(ex, d, OpUpdate, opts...)
}

// Delete returns a delete statement.
func Delete(ex dialect.ExecQuerier, d Dialect, opts ...Option) *Statement {
	return New(ex, d, OpDelete, opts...)
}

// ID returns the statement id used in log lines.
func (s *Statement) ID() string { return s.id }

// Op returns the operation kind.
func (s *Statement) Op() Op { return s.op }

// Dialect returns the dialect of the statement.
func (s *Statement) Dialect() Dialect { return s.dialect }

// Logger returns the statement logger.
func (s *Statement) Logger() *slog.Logger { return s.logger }

// Tables returns the table list as given, aliases included.
func (s *Statement) Tables() []string { return append([]string(nil), s.tables...) }

// Keys returns the primary key columns set with PrimaryKey.
func (s *Statement) Keys() []string { return append([]string(nil), s.pkey...) }

// Bindings returns the statement bindings in creation order.
func (s *Statement) Bindings() []*Binding { return append([]*Binding(nil), s.bindings...) }

// Pagination returns the limit and offset, -1 when unset.
func (s *Statement) Pagination() (limit, offset int) { return s.limit, s.offset }

// Prepared returns the prepared form of the statement, or nil before
// Prepare.
func (s *Statement) Prepared() *Prepared { return s.prepared }

// SQL returns the prepared SQL, or "" before Prepare.
func (s *Statement) SQL() string {
	if s.prepared == nil {
		return ""
	}
	return s.prepared.SQL
}

// Args returns the prepared driver arguments.
func (s *Statement) Args() []any {
	if s.prepared == nil {
		return nil
	}
	return s.prepared.Args
}

// Table appends tables to the statement. A table may carry an alias
// ("users as u").
func (s *Statement) Table(tables ...string) *Statement {
	s.tables = append(s.tables, tables...)
	return s
}

// Get appends columns to the select list.
func (s *Statement) Get(fields ...string) *Statement {
	s.fields = append(s.fields, fields...)
	return s
}

// Set assigns value to a column of an insert or update.
func (s *Statement) Set(field string, value any) *Statement {
	name := fmt.Sprintf("set_%d", len(s.sets))
	s.Bind(name, value)
	s.sets = append(s.sets, assignment{field: field, value: s.dialect.BindPrefix() + name})
	return s
}

// SetExpr assigns the raw SQL expression expr to a column.
func (s *Statement) SetExpr(field, expr string) *Statement {
	s.sets = append(s.sets, assignment{field: field, value: expr})
	return s
}

// Bind adds a named binding and returns it for typing with As.
func (s *Statement) Bind(name string, value any) *Binding {
	b := &Binding{Name: name, Value: value}
	s.bindings = append(s.bindings, b)
	return b
}

// Where adds "key op value" joined with AND. A nil value with "=" or
// "!=" compiles to IS NULL or IS NOT NULL.
func (s *Statement) Where(key, op string, value any) *Statement {
	return s.where("AND", key, op, value)
}

// OrWhere is like Where, joined with OR.
func (s *Statement) OrWhere(key, op string, value any) *Statement {
	return s.where("OR", key, op, value)
}

// WhereIn adds "key IN (values...)" joined with AND. An empty list
// matches nothing.
func (s *Statement) WhereIn(key string, values ...any) *Statement {
	return s.whereIn("AND", key, values)
}

// OrWhereIn is like WhereIn, joined with OR.
func (s *Statement) OrWhereIn(key string, values ...any) *Statement {
	return s.whereIn("OR", key, values)
}

// WhereRaw adds a raw SQL condition joined with AND.
func (s *Statement) WhereRaw(cond string) *Statement {
	s.wheres = append(s.wheres, condition{conj: "AND", sql: cond})
	return s
}

// WhereGroup adds the conditions added by fn as a parenthesized group
// joined with AND.
func (s *Statement) WhereGroup(fn func(*Statement)) *Statement {
	return s.group("AND", fn)
}

// OrWhereGroup is like WhereGroup, joined with OR.
func (s *Statement) OrWhereGroup(fn func(*Statement)) *Statement {
	return s.group("OR", fn)
}

func (s *Statement) group(conj string, fn func(*Statement)) *Statement {
	n := len(s.wheres)
	s.wheres = append(s.wheres, condition{conj: conj, group: 1})
	fn(s)
	if len(s.wheres) == n+1 {
		s.wheres = s.wheres[:n]
		return s
	}
	s.wheres = append(s.wheres, condition{group: -1})
	return s
}

func (s *Statement) where(conj, key, op string, value any) *Statement {
	op = strings.ToUpper(strings.TrimSpace(op))
	if !operators[op] {
		s.fail(fmt.Errorf("unsupported operator %q", op))
		return s
	}
	col := s.protect(key)
	if field.IsNull(value) {
		switch op {
		case "=", "IS":
			s.wheres = append(s.wheres, condition{conj: conj, sql: col + " IS NULL"})
		case "!=", "<>", "IS NOT":
			s.wheres = append(s.wheres, condition{conj: conj, sql: col + " IS NOT NULL"})
		default:
			s.fail(fmt.Errorf("operator %q cannot compare with NULL", op))
		}
		return s
	}
	name := fmt.Sprintf("where_%d", s.seq)
	s.seq++
	s.Bind(name, value)
	s.wheres = append(s.wheres, condition{conj: conj, sql: col + " " + op + " " + s.dialect.BindPrefix() + name})
	return s
}

func (s *Statement) whereIn(conj, key string, values []any) *Statement {
	if len(values) == 0 {
		s.wheres = append(s.wheres, condition{conj: conj, sql: "1 = 0"})
		return s
	}
	n := s.seq
	s.seq++
	marks := make([]string, len(values))
	for i, v := range values {
		name := fmt.Sprintf("where_%d_%d", n, i)
		s.Bind(name, v)
		marks[i] = s.dialect.BindPrefix() + name
	}
	s.wheres = append(s.wheres, condition{conj: conj, sql: s.protect(key) + " IN (" + strings.Join(marks, ", ") + ")"})
	return s
}

var joinOnRe = regexp.MustCompile(`^\s*([\w.]+)\s*(=|<>|!=|<=|>=|<|>)\s*([\w.]+)\s*$`)

// Join adds a join clause. A simple "a.id = b.a_id" condition has both
// sides protected; any other condition is used as is.
func (s *Statement) Join(table, on string, typ JoinType) *Statement {
	switch typ {
	case InnerJoin, LeftJoin, RightJoin:
	default:
		s.fail(fmt.Errorf("unsupported join type %q", typ))
		return s
	}
	if m := joinOnRe.FindStringSubmatch(on); m != nil {
		on = s.protect(m[1]) + " " + m[2] + " " + s.protect(m[3])
	}
	s.joins = append(s.joins, string(typ)+" JOIN "+s.protectTable(table)+" ON "+on)
	return s
}

// Limit sets the maximum number of rows. A negative n unsets it.
func (s *Statement) Limit(n int) *Statement {
	s.limit = max(n, -1)
	return s
}

// Offset sets the number of rows to skip. A negative n unsets it.
func (s *Statement) Offset(n int) *Statement {
	s.offset = max(n, -1)
	return s
}

// Order appends order terms such as "name", "name desc" or
// "name asc, id desc".
func (s *Statement) Order(terms ...string) *Statement {
	for _, term := range terms {
		for _, part := range strings.Split(term, ",") {
			f := strings.Fields(part)
			switch len(f) {
			case 0:
				continue
			case 1:
				s.orders = append(s.orders, s.protect(f[0])+" ASC")
			case 2:
				dir := strings.ToUpper(f[1])
				if dir != "ASC" && dir != "DESC" {
					s.fail(fmt.Errorf("invalid order direction %q", f[1]))
					return s
				}
				s.orders = append(s.orders, s.protect(f[0])+" "+dir)
			default:
				s.fail(fmt.Errorf("invalid order term %q", part))
				return s
			}
		}
	}
	return s
}

// GroupBy appends grouping columns.
func (s *Statement) GroupBy(fields ...string) *Statement {
	for _, f := range fields {
		s.groupBy = append(s.groupBy, s.protect(f))
	}
	return s
}

// Distinct makes the select distinct.
func (s *Statement) Distinct() *Statement {
	s.distinct = true
	return s
}

// PrimaryKey names the primary key columns of the first table. Dialects use
// it to capture the generated key of an insert.
func (s *Statement) PrimaryKey(columns ...string) *Statement {
	s.pkey = append(s.pkey, columns...)
	return s
}

func (s *Statement) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Protect quotes an identifier with the dialect quote pair, part by part.
// "*", expressions and already quoted parts are left unchanged.
func (s *Statement) Protect(id string) string {
	return s.protect(id)
}

func (s *Statement) protect(id string) string {
	id = strings.TrimSpace(id)
	open, closing := s.dialect.QuoteChars()
	if open == "" || id == "*" || strings.ContainsAny(id, "( ") {
		return id
	}
	parts := strings.Split(id, ".")
	for i, p := range parts {
		switch {
		case p == "*", strings.HasPrefix(p, open):
		case p == "" || strings.Contains(p, closing):
			s.fail(fmt.Errorf("invalid identifier %q", id))
			return id
		default:
			parts[i] = open + p + closing
		}
	}
	return strings.Join(parts, ".")
}

// protectField protects a select list entry, rendering "x as y" as
// "x AS y".
func (s *Statement) protectField(f string) string {
	if name, alias, ok := splitAlias(f); ok {
		return s.protect(name) + " AS " + s.protect(alias)
	}
	return s.protect(f)
}

func (s *Statement) protectTable(t string) string {
	if name, alias, ok := splitAlias(t); ok {
		return s.protect(name) + " " + s.protect(alias)
	}
	return s.protect(t)
}

// splitAlias splits "name as alias" on the " as " token.
func splitAlias(s string) (name, alias string, ok bool) {
	i := strings.Index(strings.ToLower(s), " as ")
	if i < 0 {
		return s, "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:]), true
}

// baseTable returns the first table of the statement with its alias and
// quotes removed.
func (s *Statement) baseTable() string {
	if len(s.tables) == 0 {
		return ""
	}
	name, _, _ := splitAlias(s.tables[0])
	return strings.NewReplacer(`"`, "", "[", "", "]", "", "`", "").Replace(name)
}

// BindArgs resolves the statement bindings for query, following the
// dialect's Capabilities.
func (s *Statement) BindArgs(query string) (string, []any, error) {
	return bindArgs(s.dialect, query, s.bindings)
}

// Build renders the SQL of the statement without preparing it.
func (s *Statement) Build() (string, error) {
	q, err := s.build()
	if err != nil {
		return "", portsql.NewStatementError(s.op.String(), err)
	}
	return q, nil
}

func (s *Statement) build() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.tables) == 0 {
		return "", errors.New("no table")
	}
	var b strings.Builder
	tables := strings.TrimSpace(s.dialect.BuildTableClause(s))
	switch s.op {
	case OpSelect:
		b.WriteString("SELECT ")
		if s.distinct {
			b.WriteString("DISTINCT ")
		}
		if len(s.fields) == 0 {
			b.WriteString("*")
		}
		for i, f := range s.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.protectField(f))
		}
		b.WriteString(" FROM ")
		b.WriteString(tables)
		for _, j := range s.joins {
			b.WriteString(" " + j)
		}
		s.writeWhere(&b)
		if len(s.groupBy) > 0 {
			b.WriteString(" GROUP BY " + strings.Join(s.groupBy, ", "))
		}
		if len(s.orders) > 0 {
			b.WriteString(" ORDER BY " + strings.Join(s.orders, ", "))
		}
		if limit := s.dialect.BuildLimitClause(s); limit != "" {
			b.WriteString(" " + limit)
		}
	case OpInsert:
		if len(s.sets) == 0 {
			return "", errors.New("no values to insert")
		}
		cols := make([]string, len(s.sets))
		vals := make([]string, len(s.sets))
		for i, a := range s.sets {
			cols[i] = s.protect(a.field)
			vals[i] = a.value
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", tables, strings.Join(cols, ", "), strings.Join(vals, ", "))
	case OpUpdate:
		if len(s.sets) == 0 {
			return "", errors.New("no values to update")
		}
		b.WriteString("UPDATE " + tables + " SET ")
		for i, a := range s.sets {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.protect(a.field) + " = " + a.value)
		}
		s.writeWhere(&b)
	case OpDelete:
		b.WriteString("DELETE FROM " + tables)
		s.writeWhere(&b)
	default:
		return "", fmt.Errorf("unknown operation %d", s.op)
	}
	// Identifiers protected while building may have failed.
	if s.err != nil {
		return "", s.err
	}
	return b.String(), nil
}

func (s *Statement) writeWhere(b *strings.Builder) {
	if len(s.wheres) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	first := true
	for _, w := range s.wheres {
		if w.group < 0 {
			b.WriteString(")")
			continue
		}
		if !first {
			b.WriteString(" " + w.conj + " ")
		}
		if w.group > 0 {
			b.WriteString("(")
			first = true
			continue
		}
		b.WriteString(w.sql)
		first = false
	}
}

// Prepare builds the statement and lets the dialect finalize it. It fails
// with portsql.ErrStatementDone if the statement was already prepared.
func (s *Statement) Prepare(ctx context.Context) error {
	if s.state != stateBuilding {
		return portsql.ErrStatementDone
	}
	s.state = stateDone
	q, err := s.build()
	if err != nil {
		return portsql.NewStatementError(s.op.String(), err)
	}
	p, err := s.dialect.Prepare(ctx, s, q)
	if err != nil {
		return err
	}
	s.prepared = p
	s.state = statePrepared
	return nil
}

// Exec runs the statement, preparing it first if needed. It fails with
// portsql.ErrStatementDone if the statement was already executed.
func (s *Statement) Exec(ctx context.Context) (Result, error) {
	switch s.state {
	case stateBuilding:
		if err := s.Prepare(ctx); err != nil {
			return nil, err
		}
	case statePrepared:
	default:
		return nil, portsql.ErrStatementDone
	}
	s.state = stateDone
	s.logger.DebugContext(ctx, "statement",
		"id", s.id,
		"dialect", s.dialect.Name(),
		"sql", s.prepared.SQL,
		"bindings", bindingList(s.bindings),
	)
	return s.dialect.Execute(ctx, s)
}

// commandContext applies the statement timeout to ctx.
func (s *Statement) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
