package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/portsql/dialect"
)

// Kind classifies a command by what it does to the database.
type Kind uint8

// Command kinds. KindCatalog covers the primary key lookups issued while
// preparing inserts; KindSession covers ALTER SESSION, PRAGMA and SET.
const (
	KindOther Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindCatalog
	KindSession
	numKinds
)

var kindNames = [numKinds]string{"other", "select", "insert", "update", "delete", "catalog", "session"}

func (k Kind) String() string {
	if k >= numKinds {
		return "invalid"
	}
	return kindNames[k]
}

// Classify returns the kind of a SQL command. A SQL Server insert wrapped
// in a DECLARE batch counts as an insert.
func Classify(query string) Kind {
	q := strings.ToUpper(strings.TrimSpace(query))
	if strings.Contains(q, "INFORMATION_SCHEMA.") || strings.Contains(q, "ALL_TAB_COLUMNS") {
		return KindCatalog
	}
	keyword, rest, _ := strings.Cut(q, " ")
	switch keyword {
	case "SELECT":
		return KindSelect
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	case "PRAGMA", "SET":
		return KindSession
	case "ALTER":
		if strings.HasPrefix(rest, "SESSION") {
			return KindSession
		}
	case "DECLARE":
		if strings.Contains(rest, "INSERT INTO") {
			return KindInsert
		}
	}
	return KindOther
}

// QueryStats counts the commands run through one or more StatsQueriers.
type QueryStats struct {
	commands [numKinds]atomic.Int64
	errors   [numKinds]atomic.Int64
	slow     atomic.Int64
	duration atomic.Int64 // nanoseconds
}

func (s *QueryStats) add(kind Kind, d time.Duration, failed, slow bool) {
	s.commands[kind].Add(1)
	if failed {
		s.errors[kind].Add(1)
	}
	if slow {
		s.slow.Add(1)
	}
	s.duration.Add(int64(d))
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		Commands: make(map[Kind]int64),
		Errors:   make(map[Kind]int64),
		Slow:     s.slow.Load(),
		Duration: time.Duration(s.duration.Load()),
	}
	for k := range numKinds {
		if n := s.commands[k].Load(); n > 0 {
			snap.Commands[k] = n
		}
		if n := s.errors[k].Load(); n > 0 {
			snap.Errors[k] = n
		}
	}
	return snap
}

// Reset zeroes every counter.
func (s *QueryStats) Reset() {
	for k := range numKinds {
		s.commands[k].Store(0)
		s.errors[k].Store(0)
	}
	s.slow.Store(0)
	s.duration.Store(0)
}

// StatsSnapshot holds the counters at one point in time. Kinds that never
// ran are absent from the maps.
type StatsSnapshot struct {
	Commands map[Kind]int64
	Errors   map[Kind]int64
	Slow     int64
	Duration time.Duration
}

// Total returns the number of commands of every kind.
func (s StatsSnapshot) Total() int64 {
	var n int64
	for _, c := range s.Commands {
		n += c
	}
	return n
}

// Failed returns the number of failed commands of every kind.
func (s StatsSnapshot) Failed() int64 {
	var n int64
	for _, c := range s.Errors {
		n += c
	}
	return n
}

// Lookups returns the number of catalog lookups.
func (s StatsSnapshot) Lookups() int64 { return s.Commands[KindCatalog] }

// Avg returns the mean duration of a command.
func (s StatsSnapshot) Avg() time.Duration {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return s.Duration / time.Duration(total)
}

// String renders the snapshot as "select=2 insert=1 total=3 ...". Kinds
// are listed in declaration order.
func (s StatsSnapshot) String() string {
	var b strings.Builder
	for k := range numKinds {
		if n := s.Commands[k]; n > 0 {
			fmt.Fprintf(&b, "%s=%d ", k, n)
		}
	}
	fmt.Fprintf(&b, "total=%d duration=%s avg=%s slow=%d errors=%d",
		s.Total(), s.Duration, s.Avg(), s.Slow, s.Failed())
	return b.String()
}

// SlowQueryHook is a function called when a slow query is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsQuerier wraps a dialect.ExecQuerier with query statistics
// collection. Commands are counted per Kind, so the catalog lookups an
// insert issues are kept apart from the insert itself.
type StatsQuerier struct {
	dialect.ExecQuerier
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsQuerier.
type StatsOption func(*StatsQuerier)

// WithStats shares an existing QueryStats between several queriers, e.g.
// one per transaction.
func WithStats(stats *QueryStats) StatsOption {
	return func(s *StatsQuerier) {
		s.stats = stats
	}
}

// WithSlowThreshold sets the threshold for slow query detection.
// Queries taking longer than this duration will be counted as slow queries.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsQuerier) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow queries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsQuerier) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to the given logger, or to the
// default logger if nil.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsQuerier wraps ex with statistics collection.
//
// Example:
//
//	drv, _ := sql.Open(dialect.SQLServer, dsn)
//	ex := sql.NewStatsQuerier(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	res, err := query.Select(ex, d).Table("users").Exec(ctx)
//
//	// Later, check statistics:
//	fmt.Println(ex.QueryStats().Stats())
func NewStatsQuerier(ex dialect.ExecQuerier, opts ...StatsOption) *StatsQuerier {
	s := &StatsQuerier{
		ExecQuerier:   ex,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (s *StatsQuerier) QueryStats() *QueryStats {
	return s.stats
}

// SlowThreshold returns the current slow query threshold.
func (s *StatsQuerier) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (s *StatsQuerier) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// Query executes a query and records statistics.
func (s *StatsQuerier) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := s.ExecQuerier.Query(ctx, query, args, v)
	s.record(ctx, query, args, start, err)
	return err
}

// Exec executes a statement and records statistics.
func (s *StatsQuerier) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := s.ExecQuerier.Exec(ctx, query, args, v)
	s.record(ctx, query, args, start, err)
	return err
}

func (s *StatsQuerier) record(ctx context.Context, query string, args any, start time.Time, err error) {
	duration := time.Since(start)
	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	slow := duration > threshold
	s.stats.add(Classify(query), duration, err != nil, slow)
	if slow && hook != nil {
		argv, _ := args.([]any)
		hook(ctx, query, argv, duration)
	}
}

// DebugQuerier wraps a dialect.ExecQuerier with debug logging of every
// query and its arguments.
type DebugQuerier struct {
	dialect.ExecQuerier
	logger *slog.Logger
}

// NewDebugQuerier wraps ex with debug logging to logger, or to the default
// logger if nil.
func NewDebugQuerier(ex dialect.ExecQuerier, logger *slog.Logger) *DebugQuerier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugQuerier{ExecQuerier: ex, logger: logger}
}

// Query executes a query and logs it.
func (d *DebugQuerier) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.ExecQuerier.Query(ctx, query, args, v)
}

// Exec executes a statement and logs it.
func (d *DebugQuerier) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.ExecQuerier.Exec(ctx, query, args, v)
}

// Ensure interfaces are implemented.
var (
	_ dialect.ExecQuerier = (*StatsQuerier)(nil)
	_ dialect.ExecQuerier = (*DebugQuerier)(nil)
)
