// Package query builds and executes portable SQL statements.
//
// A Statement collects tables, columns, conditions and bindings, then asks
// its Dialect to render and run them. Dialects differ in identifier
// quoting, placeholder syntax, pagination and in how the generated key of
// an insert is captured:
//
//   - Oracle appends RETURNING <pk> INTO :dtvalue and binds an output
//     parameter typed after the key column in ALL_TAB_COLUMNS.
//   - SQL Server routes the key through OUTPUT INSERTED into a table
//     variable, so inserts on tables with triggers still report it.
//   - PostgreSQL appends RETURNING <pk> AS insert_id.
//   - MySQL and SQLite use the driver's LastInsertId.
//
// Example:
//
//	d, _ := query.For(dialect.SQLServer)
//	res, err := query.Insert(drv, d, query.WithTimeout(30*time.Second)).
//		Table("dbo.users").
//		Set("name", "a8m").
//		Exec(ctx)
//	if err != nil {
//		return err
//	}
//	id, err := res.InsertID()
//
// Key lookups hit the catalog on every insert unless the statement is
// given a shared KeyCache with WithKeyCache.
//
// Statements are consumed by Exec: preparing or executing one twice fails
// with portsql.ErrStatementDone.
package query
