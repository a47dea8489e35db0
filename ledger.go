package accounting

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/accounting/identity"
	"github.com/xraph/accounting/plugin"
	"github.com/xraph/accounting/report"
	"github.com/xraph/accounting/store"
	"github.com/xraph/accounting/types"
)

// Default query limits.
const (
	DefaultHistoryLimit = 100
	DefaultBalanceLimit = 100
)

// Ledger is the accounting engine. It owns the single write path for
// balances and the transaction log, and the read views over both.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   types.Clock
	dir     identity.Directory

	names   *identity.Resolver
	reports *report.Aggregator

	// Configuration
	historyLimit int
	balanceLimit int
	activeWindow time.Duration
	skipMigrate  bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		clock:        types.SystemClock(),
		historyLimit: DefaultHistoryLimit,
		balanceLimit: DefaultBalanceLimit,
		activeWindow: report.DefaultActiveWindow,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.clock = types.NonDecreasing(l.clock)
	l.names = identity.NewResolver(l.dir, l.logger)
	l.reports = report.NewAggregator(s, l.clock, l.activeWindow)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the wall clock used for transaction timestamps and
// report windows. The engine wraps it so readings never go backwards.
func WithClock(c types.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithDirectory sets the display-name directory used by query views.
func WithDirectory(d identity.Directory) Option {
	return func(l *Ledger) {
		l.dir = d
	}
}

// WithHistoryLimit sets the default number of transactions returned by
// history queries.
func WithHistoryLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

// WithBalanceLimit sets the default number of accounts returned by the
// balance ranking.
func WithBalanceLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.balanceLimit = n
		}
	}
}

// WithActiveWindow sets how far back a sender counts as active in
// dashboard statistics.
func WithActiveWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.activeWindow = d
		}
	}
}

// WithoutMigrate makes Start skip store migrations, for deployments that
// manage the schema out of band.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return &StorageError{Op: "migrate", Err: err}
		}
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("accounting started",
		"history_limit", l.historyLimit,
		"balance_limit", l.balanceLimit,
		"active_window", l.activeWindow,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Health checks that the store is reachable.
func (l *Ledger) Health(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }
