package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/accounting/transaction"
)

// DefaultHookTimeout bounds a single plugin hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onTransferCompleted []OnTransferCompleted
	onTransferRejected  []OnTransferRejected
	onTransferFailed    []OnTransferFailed
	onReportGenerated   []OnReportGenerated
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTransferCompleted); ok {
		r.onTransferCompleted = append(r.onTransferCompleted, v)
	}
	if v, ok := p.(OnTransferRejected); ok {
		r.onTransferRejected = append(r.onTransferRejected, v)
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}
	if v, ok := p.(OnReportGenerated); ok {
		r.onReportGenerated = append(r.onReportGenerated, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookInterfaces = []struct {
	name  string
	iface reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnTransferCompleted", reflect.TypeFor[OnTransferCompleted]()},
	{"OnTransferRejected", reflect.TypeFor[OnTransferRejected]()},
	{"OnTransferFailed", reflect.TypeFor[OnTransferFailed]()},
	{"OnReportGenerated", reflect.TypeFor[OnReportGenerated]()},
}

// implementedInterfaces returns the hook names the plugin implements.
func implementedInterfaces(p Plugin) []string {
	v := reflect.TypeOf(p)
	var names []string
	for _, h := range hookInterfaces {
		if v.Implements(h.iface) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func(ctx context.Context) error {
			return p.OnInit(ctx, l)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", p.OnShutdown)
	}
}

// EmitTransferCompleted emits a committed transfer.
func (r *Registry) EmitTransferCompleted(ctx context.Context, t *transaction.Transaction, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onTransferCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTransferCompleted", func(ctx context.Context) error {
			return p.OnTransferCompleted(ctx, t, elapsed)
		})
	}
}

// EmitTransferRejected emits a transfer refused by validation or for
// insufficient balance.
func (r *Registry) EmitTransferRejected(ctx context.Context, t *transaction.Transaction, reason error) {
	r.mu.RLock()
	plugins := r.onTransferRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTransferRejected", func(ctx context.Context) error {
			return p.OnTransferRejected(ctx, t, reason)
		})
	}
}

// EmitTransferFailed emits a transfer that storage could not commit.
func (r *Registry) EmitTransferFailed(ctx context.Context, t *transaction.Transaction, err error) {
	r.mu.RLock()
	plugins := r.onTransferFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTransferFailed", func(ctx context.Context) error {
			return p.OnTransferFailed(ctx, t, err)
		})
	}
}

// EmitReportGenerated emits a computed report.
func (r *Registry) EmitReportGenerated(ctx context.Context, report string, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onReportGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnReportGenerated", func(ctx context.Context) error {
			return p.OnReportGenerated(ctx, report, elapsed)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func(context.Context) error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout. The hook context
// keeps the caller's values but not its cancellation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("plugin timeout: %s", pluginName)
	}
}
