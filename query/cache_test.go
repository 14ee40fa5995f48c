package query

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/portsql/dialect"
)

func TestKeyCacheSQLServer(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLServer)
	cache := NewKeyCache()
	insert := func(name string) string {
		res, err := Insert(drv, SQLServer{}, WithKeyCache(cache)).Table("users").PrimaryKey("id").Set("name", name).Exec(context.Background())
		require.NoError(t, err)
		id, err := res.InsertID()
		require.NoError(t, err)
		return id
	}
	lookup := func() {
		mock.ExpectQuery(regexp.QuoteMeta(mssqlKnownKey)).
			WithArgs(sql.Named("tname", "users"), sql.Named("cname", "id")).
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "max_length"}).AddRow("id", "bigint", nil))
	}
	returning := func(id int64) {
		mock.ExpectQuery(regexp.QuoteMeta("DECLARE @T TABLE ( insert_id bigint )")).
			WillReturnRows(sqlmock.NewRows([]string{"insert_id"}).AddRow(id))
	}

	lookup()
	returning(1)
	returning(2)
	assert.Equal(t, "1", insert("a8m"))
	assert.Equal(t, "2", insert("nati"))
	assert.Equal(t, 1, cache.Len())
	require.NoError(t, mock.ExpectationsWereMet())

	cache.Forget("users")
	assert.Zero(t, cache.Len())
	lookup()
	returning(3)
	assert.Equal(t, "3", insert("ariel"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyCacheSeparatesKeys(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLServer)
	cache := NewKeyCache()

	// A composite key caches no key for its own entry only.
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO [lines] ([qty]) VALUES (@set_0)")).
		WillReturnRows(sqlmock.NewRows(nil))
	_, err := Insert(drv, SQLServer{}, WithKeyCache(cache)).Table("lines").PrimaryKey("order_id", "line").Set("qty", 1).Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	mock.ExpectQuery(regexp.QuoteMeta("KU.TABLE_NAME = @tname")).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "max_length"}).AddRow("id", "int", nil))
	mock.ExpectQuery(regexp.QuoteMeta("OUTPUT INSERTED.[id] AS insert_id")).
		WillReturnRows(sqlmock.NewRows([]string{"insert_id"}).AddRow(int64(9)))
	res, err := Insert(drv, SQLServer{}, WithKeyCache(cache)).Table("lines").Set("qty", 1).Exec(context.Background())
	require.NoError(t, err)
	id, err := res.InsertID()
	require.NoError(t, err)
	assert.Equal(t, "9", id)
	assert.Equal(t, 2, cache.Len())
	require.NoError(t, mock.ExpectationsWereMet())

	cache.Clear()
	assert.Zero(t, cache.Len())
}

func TestKeyCacheErrorsNotCached(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	cache := NewKeyCache()
	mock.ExpectQuery(regexp.QuoteMeta("INFORMATION_SCHEMA.TABLE_CONSTRAINTS")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "logs"`)).
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := Insert(drv, Postgres{}, WithKeyCache(cache)).Table("logs").Set("line", "x").Exec(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cache.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyCacheOracle(t *testing.T) {
	ex := &fakeQuerier{respond: catalogRows("NUMBER", 22)}
	cache := NewKeyCache()
	for range 3 {
		_, err := Insert(ex, Oracle{}, WithKeyCache(cache)).Table("users").PrimaryKey("id").Set("name", "a8m").Exec(context.Background())
		require.NoError(t, err)
	}
	var lookups int
	for _, c := range ex.calls {
		if strings.HasPrefix(c.query, "SELECT DATA_TYPE") {
			lookups++
		}
	}
	assert.Equal(t, 1, lookups)
	assert.Len(t, ex.calls, 4)
}
