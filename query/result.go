package query

import (
	"context"
	"database/sql"
	"maps"
	"strconv"

	"github.com/syssam/portsql"
	dsql "github.com/syssam/portsql/dialect/sql"
	"github.com/syssam/portsql/schema/field"
)

// Row is one materialized result row keyed by column name.
type Row = map[string]any

// Result is the outcome of an executed statement.
type Result interface {
	// Columns returns the column names of the result set.
	Columns() []string
	// Rows returns copies of the materialized rows.
	Rows() []Row
	// Count returns the number of rows.
	Count() int
	// Fetch returns a copy of the i-th row, or nil if out of range.
	Fetch(i int) Row
	// Statement returns the executed statement.
	Statement() *Statement
	// InsertID returns the generated primary key of an insert as a string.
	InsertID() (string, error)
}

// Rowset holds the rows of a result set.
type Rowset struct {
	columns []string
	rows    []Row
}

// Columns returns the column names.
func (r *Rowset) Columns() []string { return append([]string(nil), r.columns...) }

// Rows returns copies of the rows.
func (r *Rowset) Rows() []Row {
	rows := make([]Row, len(r.rows))
	for i, row := range r.rows {
		rows[i] = maps.Clone(row)
	}
	return rows
}

// Count returns the number of rows.
func (r *Rowset) Count() int { return len(r.rows) }

// Fetch returns a copy of the i-th row, or nil if i is out of range.
func (r *Rowset) Fetch(i int) Row {
	if i < 0 || i >= len(r.rows) {
		return nil
	}
	return maps.Clone(r.rows[i])
}

func (r *Rowset) value(i int, column string) (any, bool) {
	if i < 0 || i >= len(r.rows) {
		return nil, false
	}
	v, ok := r.rows[i][column]
	return v, ok
}

// scanRowset reads the first result set that has columns and closes rows.
func scanRowset(rows dsql.Rows) (_ *Rowset, err error) {
	defer func() {
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
	}()
	rs := &Rowset{}
	for {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			rs.columns = cols
			break
		}
		if !rows.NextResultSet() {
			return rs, rows.Err()
		}
	}
	for rows.Next() {
		values := make([]any, len(rs.columns))
		dest := make([]any, len(rs.columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(rs.columns))
		for i, c := range rs.columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[c] = values[i]
		}
		rs.rows = append(rs.rows, row)
	}
	return rs, rows.Err()
}

// RunQuery runs query on the statement's querier under its timeout and
// materializes the rows. Engine errors are returned as is.
func (s *Statement) RunQuery(ctx context.Context, query string, args []any) (*Rowset, error) {
	ctx, cancel := s.commandContext(ctx)
	defer cancel()
	if args == nil {
		args = []any{}
	}
	var rows dsql.Rows
	if err := s.ex.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	return scanRowset(rows)
}

// RunExec runs query on the statement's querier under its timeout.
func (s *Statement) RunExec(ctx context.Context, query string, args []any) (sql.Result, error) {
	ctx, cancel := s.commandContext(ctx)
	defer cancel()
	if args == nil {
		args = []any{}
	}
	var res sql.Result
	if err := s.ex.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// rowsResult is a materialized result. When idColumn is set, the insert id
// is read from that column of the first row.
type rowsResult struct {
	*Rowset
	stmt     *Statement
	idColumn string
	key      *keyColumn
	reason   string
}

func (r *rowsResult) Statement() *Statement { return r.stmt }

func (r *rowsResult) InsertID() (string, error) {
	table := r.stmt.baseTable()
	if r.idColumn == "" {
		reason := r.reason
		if reason == "" {
			reason = "dialect " + r.stmt.dialect.Name() + " does not capture insert ids"
		}
		return "", portsql.NewInsertIDUnavailableError(table, reason)
	}
	v, ok := r.value(0, r.idColumn)
	if !ok || field.IsNull(v) {
		return "", portsql.NewInsertIDUnavailableError(table, "no primary key was found")
	}
	v, err := r.key.idValue(v)
	if err != nil {
		return "", portsql.NewInsertIDUnavailableError(table, err.Error())
	}
	id, err := field.Cast(v, field.TypeString)
	if err != nil {
		return "", portsql.NewInsertIDUnavailableError(table, err.Error())
	}
	return id.(string), nil
}

// execResult is the result of a statement run with Exec. It has no rows.
type execResult struct {
	Rowset
	stmt *Statement
	res  sql.Result
}

func (r *execResult) Statement() *Statement { return r.stmt }

// RowsAffected returns the number of rows changed by the statement.
func (r *execResult) RowsAffected() (int64, error) { return r.res.RowsAffected() }

func (r *execResult) InsertID() (string, error) {
	if r.stmt.op != OpInsert {
		return "", portsql.NewInsertIDUnavailableError(r.stmt.baseTable(), "not an insert")
	}
	id, err := r.res.LastInsertId()
	if err != nil {
		return "", portsql.NewInsertIDUnavailableError(r.stmt.baseTable(), err.Error())
	}
	return strconv.FormatInt(id, 10), nil
}

var (
	_ Result = (*rowsResult)(nil)
	_ Result = (*execResult)(nil)
)
