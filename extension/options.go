package extension

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/identity"
	"github.com/xraph/accounting/plugin"
	"github.com/xraph/accounting/store"
)

// Option configures the accounting Forge extension.
type Option func(*Extension)

// WithStore sets the store for the accounting engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithAccountingOption passes an accounting.Option through to the
// underlying engine.
func WithAccountingOption(opt accounting.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an accounting plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, accounting.WithPlugin(p))
	}
}

// WithDirectory sets the display-name directory used by query views.
func WithDirectory(d identity.Directory) Option {
	return func(e *Extension) { e.directory = d }
}

// WithNameCache caches directory lookups in Redis. It has no effect
// without WithDirectory.
func WithNameCache(client *redis.Client) Option {
	return func(e *Extension) { e.nameCache = client }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithHistoryLimit sets the default page size for history queries.
func WithHistoryLimit(n int) Option {
	return func(e *Extension) { e.config.HistoryLimit = n }
}

// WithBalanceLimit sets the default page size for the balance ranking.
func WithBalanceLimit(n int) Option {
	return func(e *Extension) { e.config.BalanceLimit = n }
}

// WithActiveWindow sets the dashboard active-sender window.
func WithActiveWindow(d time.Duration) Option {
	return func(e *Extension) { e.config.ActiveWindow = d }
}

// WithNameCacheTTL sets how long cached display names live.
func WithNameCacheTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.NameCacheTTL = d }
}
