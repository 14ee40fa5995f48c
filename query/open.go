package query

import (
	"context"

	"github.com/syssam/portsql/config"
	dsql "github.com/syssam/portsql/dialect/sql"
)

// Open opens the configured database together with its dialect. Every
// connection of the pool runs the dialect's InitSession when it is created,
// so statements issued on the returned driver see the session settings.
func Open(ctx context.Context, cfg config.Database) (*dsql.Driver, Dialect, error) {
	d, err := For(cfg.Dialect)
	if err != nil {
		return nil, nil, err
	}
	drv, err := dsql.OpenConfig(ctx, cfg, d.InitSession)
	if err != nil {
		return nil, nil, err
	}
	return drv, d, nil
}
