// Package extension provides the Forge extension adapter for the
// accounting engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.accounting" or
// "accounting" keys.
package extension

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/identity"
	"github.com/xraph/accounting/store"
	"github.com/xraph/accounting/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "accounting"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Balance ledger with atomic transfers and reporting"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the accounting engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *accounting.Ledger
	store      store.Store
	directory  identity.Directory
	nameCache  *redis.Client
	engineOpts []accounting.Option
}

// New creates a new accounting Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *accounting.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.Logger().Warn("accounting: no store configured, using in-memory store")
		e.store = memory.New()
	}

	e.engine = accounting.New(e.store, e.buildOpts()...)

	return vessel.Provide(fapp.Container(), func() (*accounting.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("accounting: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("accounting: engine not initialized")
	}
	return e.engine.Health(ctx)
}

// buildOpts constructs accounting.Option values from the resolved config.
// Pass-through options come last so they win over config values.
func (e *Extension) buildOpts() []accounting.Option {
	opts := make([]accounting.Option, 0, len(e.engineOpts)+5)

	opts = append(opts,
		accounting.WithHistoryLimit(e.config.HistoryLimit),
		accounting.WithBalanceLimit(e.config.BalanceLimit),
		accounting.WithActiveWindow(e.config.ActiveWindow),
	)

	if e.config.DisableMigrate {
		opts = append(opts, accounting.WithoutMigrate())
	}

	if dir := e.resolveDirectory(); dir != nil {
		opts = append(opts, accounting.WithDirectory(dir))
	}

	return append(opts, e.engineOpts...)
}

func (e *Extension) resolveDirectory() identity.Directory {
	if e.directory == nil {
		return nil
	}
	if e.nameCache == nil {
		return e.directory
	}
	return identity.NewRedisCache(e.nameCache, e.directory, e.config.NameCacheTTL, nil)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("accounting: configuration is required but not found in config files; " +
				"ensure 'extensions.accounting' or 'accounting' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("accounting: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("history_limit", e.config.HistoryLimit),
		forge.F("balance_limit", e.config.BalanceLimit),
		forge.F("active_window", e.config.ActiveWindow),
		forge.F("name_cache_ttl", e.config.NameCacheTTL),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.accounting", "accounting"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("accounting: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("accounting: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.BalanceLimit <= 0 {
		cfg.BalanceLimit = defaults.BalanceLimit
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = defaults.ActiveWindow
	}
	if cfg.NameCacheTTL <= 0 {
		cfg.NameCacheTTL = defaults.NameCacheTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.HistoryLimit == 0 && programmaticConfig.HistoryLimit != 0 {
		yamlConfig.HistoryLimit = programmaticConfig.HistoryLimit
	}
	if yamlConfig.BalanceLimit == 0 && programmaticConfig.BalanceLimit != 0 {
		yamlConfig.BalanceLimit = programmaticConfig.BalanceLimit
	}
	if yamlConfig.ActiveWindow == 0 && programmaticConfig.ActiveWindow != 0 {
		yamlConfig.ActiveWindow = programmaticConfig.ActiveWindow
	}
	if yamlConfig.NameCacheTTL == 0 && programmaticConfig.NameCacheTTL != 0 {
		yamlConfig.NameCacheTTL = programmaticConfig.NameCacheTTL
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
