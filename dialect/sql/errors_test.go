package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

// mssqlError mimics the error number accessor of go-mssqldb errors.
type mssqlError struct {
	number int32
	msg    string
}

func (e mssqlError) Error() string         { return e.msg }
func (e mssqlError) SQLErrorNumber() int32 { return e.number }

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name                   string
		err                    error
		unique, foreign, check bool
	}{
		{name: "nil"},
		{name: "plain", err: errors.New("connection refused")},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, unique: true},
		{name: "pq foreign", err: &pq.Error{Code: "23503"}, foreign: true},
		{name: "pq check", err: &pq.Error{Code: "23514"}, check: true},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, unique: true},
		{name: "mysql parent", err: &mysql.MySQLError{Number: 1451}, foreign: true},
		{name: "mysql child", err: &mysql.MySQLError{Number: 1452}, foreign: true},
		{name: "mysql check", err: &mysql.MySQLError{Number: 3819}, check: true},
		{name: "mssql unique", err: mssqlError{2627, "Violation of UNIQUE KEY constraint"}, unique: true},
		{name: "mssql unique index", err: mssqlError{2601, "Cannot insert duplicate key row"}, unique: true},
		{name: "mssql foreign", err: mssqlError{547, "The INSERT statement conflicted with the FOREIGN KEY constraint"}, foreign: true},
		{name: "mssql check", err: mssqlError{547, "The INSERT statement conflicted with the CHECK constraint"}, check: true},
		{name: "sqlite unique", err: errors.New("constraint failed: UNIQUE constraint failed: users.name (2067)"), unique: true},
		{name: "sqlite foreign", err: errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), foreign: true},
		{name: "oracle unique", err: errors.New("ORA-00001: unique constraint (APP.USERS_NAME) violated"), unique: true},
		{name: "oracle parent key", err: errors.New("ORA-02291: integrity constraint violated - parent key not found"), foreign: true},
		{name: "oracle check", err: errors.New("ORA-02290: check constraint violated"), check: true},
		{name: "wrapped", err: fmt.Errorf("dialect/sql: exec: %w", &pq.Error{Code: "23505"}), unique: true},
		{name: "wrapped mssql", err: fmt.Errorf("dialect/sql: query: %w", mssqlError{2627, "duplicate"}), unique: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreign, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreign || tt.check, IsConstraintError(tt.err))
		})
	}
}
