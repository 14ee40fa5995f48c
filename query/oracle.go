package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/portsql"
	"github.com/syssam/portsql/dialect"
	"github.com/syssam/portsql/schema/field"
)

// oracleSession is run once on every new Oracle session so that dates are
// exchanged as "2006-01-02 15:04:05" text.
var oracleSession = []string{
	"ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'",
	"ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS'",
}

// Oracle captures the generated key of an insert with RETURNING ... INTO
// an output parameter typed after the key column.
type Oracle struct{ Base }

// Name implements Dialect.
func (Oracle) Name() string { return dialect.Oracle }

// QuoteChars implements Dialect.
func (Oracle) QuoteChars() (string, string) { return `"`, `"` }

// BuildLimitClause implements Dialect.
func (Oracle) BuildLimitClause(s *Statement) string { return offsetFetch(s) }

// InitSession implements Dialect.
func (Oracle) InitSession(ctx context.Context, ex dialect.ExecQuerier) error {
	for _, q := range oracleSession {
		if err := ex.Exec(ctx, q, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Prepare implements Dialect.
func (o Oracle) Prepare(ctx context.Context, s *Statement, sql string) (*Prepared, error) {
	q, args, err := s.BindArgs(sql)
	if err != nil {
		return nil, err
	}
	p := &Prepared{SQL: q, Args: args}
	if s.op != OpInsert || len(s.pkey) != 1 {
		return p, nil
	}
	pk := s.pkey[0]
	typ, err := cachedLookup(s, func() (field.Type, error) {
		return o.keyType(ctx, s, pk)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "primary key type lookup failed, insert id will not be available",
			"id", s.id, "table", s.baseTable(), "column", pk, "error", err)
		return p, nil
	}
	out := newOutParam(typ)
	p.SQL += " RETURNING " + s.protect(pk) + " INTO :" + OutParam
	p.Args = append(p.Args, out.arg())
	p.Handle = out
	return p, nil
}

// upper folds a name the way Oracle stores unquoted identifiers. A Caser
// is stateful, so one is made per call.
func upper(name string) string { return cases.Upper(language.Und).String(name) }

// keyType looks up the type of the key column in the catalog. A column that
// is not found is assumed to be an integer.
func (Oracle) keyType(ctx context.Context, s *Statement, pk string) (field.Type, error) {
	table := s.baseTable()
	owner, name := "", table
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		owner, name = table[:i], table[i+1:]
	}
	column := strings.Trim(pk[strings.LastIndexByte(pk, '.')+1:], `"`)
	q := "SELECT DATA_TYPE, DATA_LENGTH FROM ALL_TAB_COLUMNS WHERE TABLE_NAME = :tname AND COLUMN_NAME = :cname"
	args := []any{sql.Named("tname", upper(name)), sql.Named("cname", upper(column))}
	if owner != "" {
		q += " AND OWNER = :owner"
		args = append(args, sql.Named("owner", upper(owner)))
	}
	rs, err := s.RunQuery(ctx, q, args)
	if err != nil {
		return field.TypeUnset, err
	}
	v, ok := rs.value(0, "DATA_TYPE")
	if !ok {
		s.logger.InfoContext(ctx, "primary key column not found in catalog, assuming an integer",
			"id", s.id, "table", table, "column", column)
		return field.TypeInt64, nil
	}
	dataType, err := field.Cast(v, field.TypeString)
	if err != nil {
		return field.TypeUnset, fmt.Errorf("DATA_TYPE: %w", err)
	}
	return oracleKeyType(dataType.(string)), nil
}

// oracleKeyType maps an Oracle data type name to the key type captured by
// the output parameter.
func oracleKeyType(dataType string) field.Type {
	t := strings.ToUpper(strings.TrimSpace(dataType))
	switch {
	case t == "NUMBER", t == "FLOAT", t == "INTEGER", strings.HasPrefix(t, "BINARY_"):
		return field.TypeInt64
	case t == "DATE":
		return field.TypeDate
	case strings.HasPrefix(t, "TIMESTAMP"):
		return field.TypeDateTime
	default:
		return field.TypeString
	}
}

// outParam is the destination of the RETURNING ... INTO parameter.
type outParam struct {
	typ field.Type
	num sql.NullInt64
	tm  sql.NullTime
	str sql.NullString
}

func newOutParam(t field.Type) *outParam { return &outParam{typ: t} }

func (o *outParam) dest() any {
	switch o.typ {
	case field.TypeInt64:
		return &o.num
	case field.TypeDate, field.TypeDateTime:
		return &o.tm
	default:
		return &o.str
	}
}

func (o *outParam) arg() sql.NamedArg {
	return sql.Named(OutParam, sql.Out{Dest: o.dest()})
}

// value returns the string form of the populated parameter.
func (o *outParam) value() (string, bool) {
	switch o.typ {
	case field.TypeInt64:
		return fmt.Sprint(o.num.Int64), o.num.Valid
	case field.TypeDate:
		return o.tm.Time.Format(field.DateLayout), o.tm.Valid
	case field.TypeDateTime:
		return o.tm.Time.Format(field.DateTimeLayout), o.tm.Valid
	default:
		return o.str.String, o.str.Valid
	}
}

// Execute implements Dialect. Inserts run as a reader too so that rows
// returned alongside the output parameter are kept.
func (Oracle) Execute(ctx context.Context, s *Statement) (Result, error) {
	p := s.Prepared()
	rs, err := s.RunQuery(ctx, p.SQL, p.Args)
	if err != nil {
		return nil, err
	}
	out, _ := p.Handle.(*outParam)
	return &oracleResult{Rowset: rs, stmt: s, out: out}, nil
}

type oracleResult struct {
	*Rowset
	stmt *Statement
	out  *outParam
}

func (r *oracleResult) Statement() *Statement { return r.stmt }

func (r *oracleResult) InsertID() (string, error) {
	if r.out == nil {
		return "", portsql.NewInsertIDUnavailableError(r.stmt.baseTable(), "no output parameter was bound")
	}
	id, ok := r.out.value()
	if !ok {
		return "", portsql.NewInsertIDUnavailableError(r.stmt.baseTable(), "output parameter was not populated")
	}
	return id, nil
}

var (
	_ Dialect = Oracle{}
	_ Result  = (*oracleResult)(nil)
)
