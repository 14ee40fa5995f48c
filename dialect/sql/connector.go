package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/syssam/portsql/dialect"
)

// OpenConnector is like Open, but every connection the pool creates runs
// init before the pool hands it out. Initializers run on the raw driver
// connection: they may Exec, but not Query.
func OpenConnector(name, source string, init SessionInitializer) (*Driver, error) {
	if name == dialect.MySQL {
		var err error
		if source, err = mysqlSource(source); err != nil {
			return nil, err
		}
	}
	// sql.Open resolves the registered driver without connecting.
	db, err := sql.Open(DriverName(name), source)
	if err != nil {
		return nil, err
	}
	drv := db.Driver()
	_ = db.Close()
	c, err := newConnector(drv, source)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: connector: %w", err)
	}
	if init != nil {
		c = &initConnector{Connector: c, init: init}
	}
	return OpenDB(name, sql.OpenDB(c)), nil
}

func newConnector(drv driver.Driver, source string) (driver.Connector, error) {
	if dc, ok := drv.(driver.DriverContext); ok {
		return dc.OpenConnector(source)
	}
	return dsnConnector{dsn: source, drv: drv}, nil
}

// dsnConnector is the connector of drivers without driver.DriverContext.
type dsnConnector struct {
	dsn string
	drv driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) { return c.drv.Open(c.dsn) }
func (c dsnConnector) Driver() driver.Driver                        { return c.drv }

// initConnector runs init on every new connection.
type initConnector struct {
	driver.Connector
	init SessionInitializer
}

func (c *initConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.init(ctx, rawConn{conn}); err != nil {
		return nil, errors.Join(fmt.Errorf("dialect/sql: session init: %w", err), conn.Close())
	}
	return conn, nil
}

// rawConn adapts a driver connection that the pool does not own yet to
// dialect.ExecQuerier.
type rawConn struct{ conn driver.Conn }

var errRawQuery = errors.New("dialect/sql: session initializers cannot query a new connection")

// Exec implements the dialect.Exec method.
func (c rawConn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	named := make([]driver.NamedValue, len(argv))
	for i, a := range argv {
		nv := driver.NamedValue{Ordinal: i + 1, Value: a}
		if na, ok := a.(sql.NamedArg); ok {
			nv.Name, nv.Value = na.Name, na.Value
		}
		value, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: argument %d: %w", i+1, err)
		}
		nv.Value = value
		named[i] = nv
	}
	res, err := c.exec(ctx, query, named)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	switch v := v.(type) {
	case nil:
	case *sql.Result:
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

func (c rawConn) exec(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if ec, ok := c.conn.(driver.ExecerContext); ok {
		res, err := ec.ExecContext(ctx, query, args)
		if !errors.Is(err, driver.ErrSkip) {
			return res, err
		}
	}
	var (
		stmt driver.Stmt
		err  error
	)
	if pc, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	if sc, ok := stmt.(driver.StmtExecContext); ok {
		return sc.ExecContext(ctx, args)
	}
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	return stmt.Exec(values)
}

// Query implements the dialect.Query method. It always fails.
func (rawConn) Query(context.Context, string, any, any) error { return errRawQuery }

var _ dialect.ExecQuerier = rawConn{}
