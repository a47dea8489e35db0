package extension

import "time"

// Config holds the accounting extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.accounting" or "accounting" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// HistoryLimit is the default page size for transaction history
	// queries (default: 100).
	HistoryLimit int `json:"history_limit" mapstructure:"history_limit" yaml:"history_limit"`

	// BalanceLimit is the default page size for the balance ranking
	// (default: 100).
	BalanceLimit int `json:"balance_limit" mapstructure:"balance_limit" yaml:"balance_limit"`

	// ActiveWindow is how far back a sender counts as active in dashboard
	// statistics (default: 30 days).
	ActiveWindow time.Duration `json:"active_window" mapstructure:"active_window" yaml:"active_window"`

	// NameCacheTTL controls how long resolved display names are cached in
	// Redis when a name cache client is configured (default: 10m).
	NameCacheTTL time.Duration `json:"name_cache_ttl" mapstructure:"name_cache_ttl" yaml:"name_cache_ttl"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 100,
		BalanceLimit: 100,
		ActiveWindow: 30 * 24 * time.Hour,
		NameCacheTTL: 10 * time.Minute,
	}
}
