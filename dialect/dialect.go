package dialect

import "context"

// Dialect names for supported database engines.
const (
	Oracle    = "oracle"
	SQLServer = "sqlserver"
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
)

// Names lists every supported dialect name.
var Names = []string{Oracle, SQLServer, Postgres, MySQL, SQLite}

// Known reports if name is a supported dialect.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// ExecQuerier wraps the two database operations a statement needs.
//
// For Query, v must be a *sql.Rows of the dialect/sql package. For Exec,
// v is nil or a *sql.Result.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for
// database connections.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
