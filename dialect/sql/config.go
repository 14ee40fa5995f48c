package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/portsql/config"
	"github.com/syssam/portsql/dialect"
)

// OpenConfig opens a Driver from the database section of the
// configuration, tunes its pool and verifies the connection. A non-nil init
// runs on every connection the pool creates, see OpenConnector.
func OpenConfig(ctx context.Context, cfg config.Database, init SessionInitializer) (*Driver, error) {
	drv, err := OpenConnector(cfg.Dialect, cfg.DSN, init)
	if err != nil {
		return nil, err
	}
	db := drv.DB()
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dialect/sql: ping %s: %w", cfg.Dialect, err)
	}
	return drv, nil
}

// Wrap layers the statistics and debug queriers configured in cfg around
// ex. The returned QueryStats is nil when statistics are disabled.
func Wrap(ex dialect.ExecQuerier, cfg *config.Config, logger *slog.Logger) (dialect.ExecQuerier, *QueryStats) {
	var stats *QueryStats
	if cfg.Stats.Enabled {
		sq := NewStatsQuerier(ex,
			WithSlowThreshold(cfg.Stats.SlowThreshold),
			WithSlowQueryLog(logger),
		)
		stats = sq.QueryStats()
		ex = sq
	}
	if strings.EqualFold(cfg.Log.Level, "debug") {
		ex = NewDebugQuerier(ex, logger)
	}
	return ex, stats
}
