package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by pgx and some MySQL drivers.
type sqlStateError interface {
	SQLState() string
}

// sqlErrorNumberer is implemented by go-mssqldb errors.
type sqlErrorNumberer interface {
	SQLErrorNumber() int32
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQL Server error numbers for constraint violations. 547 covers both
// foreign-key and check constraints; the message names which one.
const (
	mssqlUniqueConstraint = 2627
	mssqlUniqueIndex      = 2601
	mssqlConstraintFailed = 547
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := pgCode(err); ok && code == pgUniqueViolation {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return true
	}
	if e, ok := asError[sqlErrorNumberer](err); ok {
		if n := e.SQLErrorNumber(); n == mssqlUniqueConstraint || n == mssqlUniqueIndex {
			return true
		}
	}
	// Fallback to string matching for drivers that don't expose codes.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL (string fallback)
		"violates unique constraint", // Postgres (string fallback)
		"UNIQUE constraint failed",   // SQLite
		"ORA-00001",                  // Oracle
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := pgCode(err); ok && code == pgForeignKeyViolation {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlForeignKeyParent || me.Number == mysqlForeignKeyChild) {
		return true
	}
	if e, ok := asError[sqlErrorNumberer](err); ok && e.SQLErrorNumber() == mssqlConstraintFailed {
		return strings.Contains(err.Error(), "FOREIGN KEY")
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
		"ORA-02291",                       // Oracle (parent key not found)
		"ORA-02292",                       // Oracle (child record found)
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := pgCode(err); ok && code == pgCheckViolation {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlCheckConstraintViolate {
		return true
	}
	if e, ok := asError[sqlErrorNumberer](err); ok && e.SQLErrorNumber() == mssqlConstraintFailed {
		return strings.Contains(err.Error(), "CHECK")
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
		"ORA-02290",                 // Oracle
	)
}

// pgCode extracts the SQLSTATE of a PostgreSQL error.
func pgCode(err error) (string, bool) {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return string(pe.Code), true
	}
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState(), true
	}
	return "", false
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
