// Package portsql issues portable SELECT/INSERT/UPDATE/DELETE statements
// against relational engines with differing SQL dialects.
//
// The root package holds the error taxonomy shared by the sub-packages.
//
// # Sub-packages
//
//   - query: statement builder, dialects (Oracle, SQL Server, PostgreSQL,
//     MySQL, SQLite) and result wrappers
//   - nested: dotted-path read/write over nested map data
//   - schema/field: semantic type tags and value casting
//   - dialect: dialect names and execution contracts
//   - dialect/sql: database/sql driver layer
//   - config: YAML configuration and logger setup
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLServer, dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d, _ := query.For(drv.Dialect())
//	res, err := query.Insert(drv, d).
//	    Table("dbo.users").
//	    Set("name", "Ariel").
//	    Exec(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := res.InsertID()
package portsql
