// Package plugin provides an extensible plugin system for the accounting
// engine. Plugins can hook into lifecycle and transfer events to extend
// functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/accounting/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferCompleted is called after a transfer has been committed. It is
// not called for idempotent replays.
type OnTransferCompleted interface {
	Plugin
	OnTransferCompleted(ctx context.Context, t *transaction.Transaction, elapsed time.Duration) error
}

// OnTransferRejected is called when a transfer fails validation or the
// sender cannot cover the amount. t carries the request; its ID is nil.
type OnTransferRejected interface {
	Plugin
	OnTransferRejected(ctx context.Context, t *transaction.Transaction, reason error) error
}

// OnTransferFailed is called when storage could not commit a transfer.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, t *transaction.Transaction, err error) error
}

// ──────────────────────────────────────────────────
// Reporting hooks
// ──────────────────────────────────────────────────

// OnReportGenerated is called after a dashboard or financial report has
// been computed.
type OnReportGenerated interface {
	Plugin
	OnReportGenerated(ctx context.Context, report string, elapsed time.Duration) error
}
