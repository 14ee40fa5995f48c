package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/syssam/portsql/dialect"
	"github.com/syssam/portsql/schema/field"
)

// SQLServer captures the generated key of an insert through an OUTPUT
// clause into a table variable, which keeps working when the table has
// insert triggers.
type SQLServer struct{ Base }

// Name implements Dialect.
func (SQLServer) Name() string { return dialect.SQLServer }

// BindPrefix implements Dialect.
func (SQLServer) BindPrefix() string { return "@" }

// QuoteChars implements Dialect.
func (SQLServer) QuoteChars() (string, string) { return "[", "]" }

// BuildLimitClause implements Dialect. SQL Server requires an ORDER BY for
// OFFSET/FETCH; adding one is left to the caller.
func (SQLServer) BuildLimitClause(s *Statement) string { return offsetFetch(s) }

// Prepare implements Dialect.
func (SQLServer) Prepare(ctx context.Context, s *Statement, sql string) (*Prepared, error) {
	q, args, err := s.BindArgs(sql)
	if err != nil {
		return nil, err
	}
	p := &Prepared{SQL: q, Args: args}
	if s.op != OpInsert {
		return p, nil
	}
	key, err := lookupKey(ctx, s, "")
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "primary key lookup failed, insert id will not be available",
			"id", s.id, "table", s.baseTable(), "error", err)
	case key == nil:
		s.logger.InfoContext(ctx, "no single-column primary key found, insert id will not be available",
			"id", s.id, "table", s.baseTable())
	default:
		p.SQL = "DECLARE @T TABLE ( " + InsertIDCol + " " + key.sqlType() + " ); " +
			strings.Replace(p.SQL, " VALUES (", " OUTPUT INSERTED."+s.protect(key.name)+" AS "+InsertIDCol+" INTO @T VALUES (", 1) +
			"; SELECT " + InsertIDCol + " FROM @T"
		p.Handle = key
	}
	return p, nil
}

// Execute implements Dialect.
func (SQLServer) Execute(ctx context.Context, s *Statement) (Result, error) {
	return executeCaptured(ctx, s)
}

// executeCaptured runs the statement as a reader. When prepare captured a
// key column, the insert id is read from the "insert_id" column.
func executeCaptured(ctx context.Context, s *Statement) (Result, error) {
	p := s.Prepared()
	rs, err := s.RunQuery(ctx, p.SQL, p.Args)
	if err != nil {
		return nil, err
	}
	r := &rowsResult{Rowset: rs, stmt: s}
	if k, ok := p.Handle.(*keyColumn); ok {
		r.idColumn = InsertIDCol
		r.key = k
	} else if s.op == OpInsert {
		r.reason = "no primary key was found"
	}
	return r, nil
}

// keyColumn is a primary key column found in the catalog.
type keyColumn struct {
	name     string
	dataType string
	// length is the character length; -1 means max.
	length int64
}

// sqlType renders the column type, e.g. "int", "nvarchar(40)" or
// "varbinary(max)".
func (k *keyColumn) sqlType() string {
	switch {
	case k.length < 0:
		return k.dataType + "(max)"
	case k.length > 0:
		return k.dataType + "(" + strconv.FormatInt(k.length, 10) + ")"
	default:
		return k.dataType
	}
}

// idValue converts a captured key value into a castable form. SQL Server
// returns uniqueidentifier columns as 16 bytes in wire order.
func (k *keyColumn) idValue(v any) (any, error) {
	if k == nil || !strings.EqualFold(k.dataType, "uniqueidentifier") {
		return v, nil
	}
	var u mssql.UniqueIdentifier
	if err := u.Scan(v); err != nil {
		return nil, err
	}
	return u.String(), nil
}

// splitSchema splits "schema.table".
func splitSchema(table string) (schema, name string) {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

// lookupKey finds the single primary key column of the first table in
// INFORMATION_SCHEMA. It returns nil if the key is unknown or composite.
// defaultSchema is a SQL expression scoping the lookup when the table has
// no schema, or "" for none.
func lookupKey(ctx context.Context, s *Statement, defaultSchema string) (*keyColumn, error) {
	return cachedLookup(s, func() (*keyColumn, error) {
		return queryKey(ctx, s, defaultSchema)
	})
}

func queryKey(ctx context.Context, s *Statement, defaultSchema string) (*keyColumn, error) {
	if len(s.pkey) > 1 {
		return nil, nil
	}
	p := s.dialect.BindPrefix()
	schema, table := splitSchema(s.baseTable())
	knownPK := len(s.pkey) == 1
	bindings := []*Binding{{Name: "tname", Value: table}}
	var (
		b              strings.Builder
		schemaCol, col string
	)
	if knownPK {
		schemaCol = "TABLE_SCHEMA"
		b.WriteString("SELECT COLUMN_NAME AS column_name, DATA_TYPE AS data_type, CHARACTER_MAXIMUM_LENGTH AS max_length ")
		b.WriteString("FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = " + p + "tname AND COLUMN_NAME = " + p + "cname")
		col = strings.Trim(s.pkey[0][strings.LastIndexByte(s.pkey[0], '.')+1:], `"[]`+"`")
		bindings = append(bindings, &Binding{Name: "cname", Value: col})
	} else {
		schemaCol = "KU.TABLE_SCHEMA"
		b.WriteString("SELECT KU.COLUMN_NAME AS column_name, C.DATA_TYPE AS data_type, C.CHARACTER_MAXIMUM_LENGTH AS max_length ")
		b.WriteString("FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS TC ")
		b.WriteString("JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KU ON TC.CONSTRAINT_NAME = KU.CONSTRAINT_NAME AND TC.TABLE_SCHEMA = KU.TABLE_SCHEMA AND TC.TABLE_NAME = KU.TABLE_NAME ")
		b.WriteString("JOIN INFORMATION_SCHEMA.COLUMNS C ON C.TABLE_SCHEMA = KU.TABLE_SCHEMA AND C.TABLE_NAME = KU.TABLE_NAME AND C.COLUMN_NAME = KU.COLUMN_NAME ")
		b.WriteString("WHERE TC.CONSTRAINT_TYPE = 'PRIMARY KEY' AND KU.TABLE_NAME = " + p + "tname")
	}
	switch {
	case schema != "":
		b.WriteString(" AND " + schemaCol + " = " + p + "tschema")
		bindings = append(bindings, &Binding{Name: "tschema", Value: schema})
	case defaultSchema != "":
		b.WriteString(" AND " + schemaCol + " = " + defaultSchema)
	}
	if !knownPK {
		b.WriteString(" ORDER BY KU.ORDINAL_POSITION")
	}
	q, args, err := bindArgs(s.dialect, b.String(), bindings)
	if err != nil {
		return nil, err
	}
	rs, err := s.RunQuery(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if rs.Count() != 1 {
		return nil, nil
	}
	row := rs.rows[0]
	key := &keyColumn{name: col}
	if v, err := field.Cast(row["column_name"], field.TypeString); err == nil && v != nil {
		key.name = v.(string)
	}
	dataType, err := field.Cast(row["data_type"], field.TypeString)
	if err != nil || dataType == nil {
		return nil, fmt.Errorf("data type of %s.%s: %v", table, key.name, row["data_type"])
	}
	key.dataType = dataType.(string)
	if v, err := field.Cast(row["max_length"], field.TypeInt64); err == nil && v != nil {
		key.length = v.(int64)
	}
	return key, nil
}

var _ Dialect = SQLServer{}
