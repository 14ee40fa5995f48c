package query

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/portsql"
	"github.com/syssam/portsql/dialect"
	"github.com/syssam/portsql/schema/field"
)

func TestBuildTableClause(t *testing.T) {
	tests := []struct {
		name   string
		d      Dialect
		tables []string
		want   string
	}{
		{"base alias", Base{}, []string{"users as u"}, " users u "},
		{"base plain", Base{}, []string{"users"}, " users "},
		{"base many", Base{}, []string{"users", "pets as p"}, " users, pets p "},
		{"oracle alias", Oracle{}, []string{"hr.users as u"}, ` "hr"."users" "u" `},
		{"sqlserver schema", SQLServer{}, []string{"dbo.users"}, " [dbo].[users] "},
		{"mysql", MySQL{}, []string{"users"}, " `users` "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Select(nil, tt.d).Table(tt.tables...)
			assert.Equal(t, tt.want, tt.d.BuildTableClause(s))
		})
	}
}

func TestOffsetFetch(t *testing.T) {
	tests := []struct {
		limit, offset int
		want          string
	}{
		{-1, -1, ""},
		{10, -1, "OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"},
		{-1, 5, "OFFSET 5 ROWS"},
		{10, 20, "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"},
		{0, -1, "OFFSET 0 ROWS FETCH NEXT 0 ROWS ONLY"},
	}
	for _, d := range []Dialect{SQLServer{}, Oracle{}} {
		for _, tt := range tests {
			s := Select(nil, d).Table("t").Limit(tt.limit).Offset(tt.offset)
			assert.Equal(t, tt.want, d.BuildLimitClause(s), "%s limit=%d offset=%d", d.Name(), tt.limit, tt.offset)
		}
	}
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		d             Dialect
		limit, offset int
		want          string
	}{
		{Postgres{}, 5, 10, "LIMIT 5 OFFSET 10"},
		{Postgres{}, -1, 10, "LIMIT ALL OFFSET 10"},
		{MySQL{}, 5, -1, "LIMIT 5"},
		{MySQL{}, -1, 5, "LIMIT 18446744073709551615 OFFSET 5"},
		{SQLite{}, -1, 5, "LIMIT -1 OFFSET 5"},
		{SQLite{}, -1, -1, ""},
		{Base{}, 5, 5, ""},
	}
	for _, tt := range tests {
		s := Select(nil, tt.d).Table("t").Limit(tt.limit).Offset(tt.offset)
		assert.Equal(t, tt.want, tt.d.BuildLimitClause(s), "%s limit=%d offset=%d", tt.d.Name(), tt.limit, tt.offset)
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		stmt *Statement
		want string
	}{
		{
			name: "base select",
			stmt: Select(nil, Base{}).Table("users").Get("id", "name").Where("id", "=", 1),
			want: "SELECT id, name FROM users WHERE id = :where_0",
		},
		{
			name: "sqlserver select",
			stmt: Select(nil, SQLServer{}).
				Table("dbo.users as u").
				Get("u.id", "u.name as n").
				Where("u.age", ">", 18).
				OrWhere("u.name", "=", nil).
				Order("u.name desc").
				Limit(10),
			want: "SELECT [u].[id], [u].[name] AS [n] FROM [dbo].[users] [u] WHERE [u].[age] > @where_0 OR [u].[name] IS NULL ORDER BY [u].[name] DESC OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY",
		},
		{
			name: "oracle distinct with expressions",
			stmt: Select(nil, Oracle{}).Distinct().Table("users").Get("COUNT(*) as total", "*").GroupBy("city").Offset(5),
			want: `SELECT DISTINCT COUNT(*) AS "total", * FROM "users" GROUP BY "city" OFFSET 5 ROWS`,
		},
		{
			name: "join",
			stmt: Select(nil, Postgres{}).Table("users as u").Get("u.name", "p.name").
				Join("pets as p", "u.id = p.owner_id", LeftJoin).
				Join("cards c", "c.owner_id = u.id AND c.active", InnerJoin),
			want: `SELECT "u"."name", "p"."name" FROM "users" "u" LEFT JOIN "pets" "p" ON "u"."id" = "p"."owner_id" INNER JOIN cards c ON c.owner_id = u.id AND c.active`,
		},
		{
			name: "groups",
			stmt: Select(nil, Base{}).Table("t").
				Where("a", "=", 1).
				OrWhereGroup(func(s *Statement) {
					s.Where("b", "=", 2).Where("c", "!=", nil)
				}).
				WhereGroup(func(*Statement) {}),
			want: "SELECT * FROM t WHERE a = :where_0 OR (b = :where_1 AND c IS NOT NULL)",
		},
		{
			name: "leading group",
			stmt: Select(nil, Base{}).Table("t").
				WhereGroup(func(s *Statement) {
					s.Where("a", "<>", nil).OrWhere("a", "like", "x%")
				}).
				WhereRaw("deleted = 0"),
			want: "SELECT * FROM t WHERE (a IS NOT NULL OR a LIKE :where_0) AND deleted = 0",
		},
		{
			name: "where in",
			stmt: Select(nil, SQLServer{}).Table("t").WhereIn("id", 1, 2).OrWhereIn("id"),
			want: "SELECT * FROM [t] WHERE [id] IN (@where_0_0, @where_0_1) OR 1 = 0",
		},
		{
			name: "insert",
			stmt: Insert(nil, Base{}).Table("users").Set("name", "a8m").Set("age", 30),
			want: "INSERT INTO users (name, age) VALUES (:set_0, :set_1)",
		},
		{
			name: "update",
			stmt: Update(nil, SQLServer{}).Table("users").Set("name", "a8m").SetExpr("updated_at", "CURRENT_TIMESTAMP").Where("id", "=", 1),
			want: "UPDATE [users] SET [name] = @set_0, [updated_at] = CURRENT_TIMESTAMP WHERE [id] = @where_0",
		},
		{
			name: "delete",
			stmt: Delete(nil, MySQL{}).Table("users").Where("id", ">=", 10),
			want: "DELETE FROM `users` WHERE `id` >= :where_0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stmt.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		stmt *Statement
		want string
	}{
		{"no table", Select(nil, Base{}), "no table"},
		{"operator", Select(nil, Base{}).Table("t").Where("a", "; DROP", 1), "unsupported operator"},
		{"null operator", Select(nil, Base{}).Table("t").Where("a", ">", nil), "cannot compare with NULL"},
		{"direction", Select(nil, Base{}).Table("t").Order("a sideways"), "invalid order direction"},
		{"order term", Select(nil, Base{}).Table("t").Order("a b c"), "invalid order term"},
		{"join type", Select(nil, Base{}).Table("t").Join("u", "t.id = u.id", "CROSS"), "unsupported join type"},
		{"insert without values", Insert(nil, Base{}).Table("t"), "no values to insert"},
		{"update without values", Update(nil, Base{}).Table("t"), "no values to update"},
		{"identifier", Select(nil, SQLServer{}).Table("t").Get("a]b"), "invalid identifier"},
		{"table identifier", Select(nil, SQLServer{}).Table("t];DROP"), "invalid identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.stmt.Build()
			require.Error(t, err)
			assert.True(t, portsql.IsStatementError(err))
			assert.Contains(t, err.Error(), tt.want)

			err = tt.stmt.Prepare(context.Background())
			require.Error(t, err)
			assert.True(t, portsql.IsStatementError(err))
		})
	}
}

func TestPrepareNamedArgs(t *testing.T) {
	s := Insert(nil, Base{}).Table("users").Set("name", "a8m").Set("deleted_at", (*time.Time)(nil))
	s.Bind("age", "42").As(field.TypeInt)
	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, "INSERT INTO users (name, deleted_at) VALUES (:set_0, :set_1)", s.SQL())
	assert.Equal(t, []any{
		sql.Named("set_0", "a8m"),
		sql.Named("set_1", nil),
		sql.Named("age", 42),
	}, s.Args())
}

func TestPreparePositional(t *testing.T) {
	s := Select(nil, Postgres{}).Table("users").
		Where("name", "=", "a8m").
		WhereIn("id", 1, 2, 3).
		WhereRaw("note::text <> ':where_0'").
		Limit(5).
		Offset(10)
	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" = $1 AND "id" IN ($2, $3, $4) AND note::text <> ':where_0' LIMIT 5 OFFSET 10`, s.SQL())
	assert.Equal(t, []any{"a8m", 1, 2, 3}, s.Args())

	s = Update(nil, SQLite{}).Table("users").Set("age", 30).Where("id", "=", 1)
	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, `UPDATE "users" SET "age" = ? WHERE "id" = ?`, s.SQL())
	assert.Equal(t, []any{30, 1}, s.Args())
}

func TestPrepareDuplicatePositional(t *testing.T) {
	s := Select(nil, MySQL{}).Table("t").WhereRaw("a = :x")
	s.Bind("x", 1)
	s.Bind("x", 2)
	err := s.Prepare(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate parameter name "x"`)
}

func TestPrepareCastError(t *testing.T) {
	s := Insert(nil, Base{}).Table("users")
	s.Bind("age", "old").As(field.TypeInt)
	s.Set("name", "a8m")
	err := s.Prepare(context.Background())
	require.Error(t, err)
	var ce *portsql.CastError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "int", ce.Type)
	assert.Equal(t, "old", ce.Value)
	assert.True(t, portsql.IsCastError(err))
}

func TestStatementConsumed(t *testing.T) {
	ctx := context.Background()
	s := Select(nil, Base{}).Table("t")
	require.NoError(t, s.Prepare(ctx))
	assert.ErrorIs(t, s.Prepare(ctx), portsql.ErrStatementDone)

	// A failed prepare consumes the statement too.
	s = Select(nil, Base{})
	require.Error(t, s.Prepare(ctx))
	assert.ErrorIs(t, s.Prepare(ctx), portsql.ErrStatementDone)
	_, err := s.Exec(ctx)
	assert.ErrorIs(t, err, portsql.ErrStatementDone)
}

func TestProtect(t *testing.T) {
	s := Select(nil, SQLServer{})
	tests := map[string]string{
		"id":            "[id]",
		"u.id":          "[u].[id]",
		"u.*":           "[u].*",
		"*":             "*",
		"[dbo].users":   "[dbo].[users]",
		"COUNT(id)":     "COUNT(id)",
		"a + b":         "a + b",
		" padded ":      "[padded]",
		"dbo.users.id":  "[dbo].[users].[id]",
		"[already].[x]": "[already].[x]",
	}
	for in, want := range tests {
		assert.Equal(t, want, s.Protect(in), in)
	}
	assert.Equal(t, "u.id", Select(nil, Base{}).Protect("u.id"))
}

func TestRewritePositional(t *testing.T) {
	index := map[string]int{"a": 0, "b": 1}
	values := []any{"A", "B"}
	q, args := rewritePositional(
		"SELECT ':a', \"x:b\", name::text FROM t WHERE a = :a AND b = :b AND c = :unknown OR a2 = :a",
		":", index, values, func(n int) string { return "$" + string(rune('0'+n)) }, false,
	)
	assert.Equal(t, "SELECT ':a', \"x:b\", name::text FROM t WHERE a = $1 AND b = $2 AND c = :unknown OR a2 = $3", q)
	assert.Equal(t, []any{"A", "B", "A"}, args)

	q, args = rewritePositional("SELECT 'it''s :a' AS s, :b", ":", index, values, func(int) string { return "?" }, false)
	assert.Equal(t, "SELECT 'it''s :a' AS s, ?", q)
	assert.Equal(t, []any{"B"}, args)
}

func TestRewritePositionalBackslash(t *testing.T) {
	index := map[string]int{"a": 0, "b": 1}
	values := []any{"A", "B"}
	mark := func(int) string { return "?" }

	q, args := rewritePositional(`SELECT 'it\'s :a' AS s, "x\":b" AS t, :b`, ":", index, values, mark, true)
	assert.Equal(t, `SELECT 'it\'s :a' AS s, "x\":b" AS t, ?`, q)
	assert.Equal(t, []any{"B"}, args)

	// An escaped backslash does not escape the closing quote.
	q, args = rewritePositional(`SELECT 'dir\\' AS p, :a`, ":", index, values, mark, true)
	assert.Equal(t, `SELECT 'dir\\' AS p, ?`, q)
	assert.Equal(t, []any{"A"}, args)

	// Backticks never take backslash escapes.
	q, args = rewritePositional("SELECT `a\\` , :a", ":", index, values, mark, true)
	assert.Equal(t, "SELECT `a\\` , ?", q)
	assert.Equal(t, []any{"A"}, args)

	// A trailing backslash leaves the span open to the end of the query.
	assert.Equal(t, 3, skipQuoted(`'a\`, 0, true))

	// Without backslash escapes the quote after the backslash closes the span.
	q, args = rewritePositional(`SELECT 'it\'s :a'`, ":", index, values, mark, false)
	assert.Equal(t, `SELECT 'it\'s ?'`, q)
	assert.Equal(t, []any{"A"}, args)
}

func TestMySQLBindBackslash(t *testing.T) {
	q, args, err := bindArgs(MySQL{}, `SELECT 'it\'s :x' AS s FROM users WHERE id = :x`, []*Binding{{Name: "x", Value: 7, Type: field.TypeInt64}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'it\'s :x' AS s FROM users WHERE id = ?`, q)
	assert.Equal(t, []any{int64(7)}, args)
}

func TestStatementAccessors(t *testing.T) {
	s := Insert(nil, SQLServer{}, WithTimeout(time.Second)).
		Table(`"dbo"."users" as u`).
		PrimaryKey("id")
	assert.NotEmpty(t, s.ID())
	assert.NotEqual(t, s.ID(), Insert(nil, SQLServer{}).ID())
	assert.Equal(t, OpInsert, s.Op())
	assert.Equal(t, "insert", s.Op().String())
	assert.Equal(t, "invalid", Op(0).String())
	assert.Equal(t, []string{"id"}, s.Keys())
	assert.Equal(t, "dbo.users", s.baseTable())
	assert.Equal(t, dialect.SQLServer, s.Dialect().Name())
	assert.Empty(t, s.SQL())
	assert.Nil(t, s.Args())
	limit, offset := s.Pagination()
	assert.Equal(t, -1, limit)
	assert.Equal(t, -1, offset)
}

func TestRegistry(t *testing.T) {
	for _, name := range append([]string{"base"}, dialect.Names...) {
		d, err := For(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name())
	}
	_, err := For("db2")
	require.Error(t, err)

	assert.Panics(t, func() { Register(dialect.Oracle, Oracle{}) })
	assert.Panics(t, func() { Register("", Base{}) })
	assert.Contains(t, Dialects(), dialect.SQLServer)
}
