// Package observability provides a metrics extension for the accounting
// engine that records transfer and report activity via a MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/plugin"
	"github.com/xraph/accounting/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnTransferCompleted = (*MetricsExtension)(nil)
	_ plugin.OnTransferRejected  = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed    = (*MetricsExtension)(nil)
	_ plugin.OnReportGenerated   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide transfer metrics.
// Register it as a plugin to automatically track ledger activity.
type MetricsExtension struct {
	factory MetricFactory

	// Transfer metrics
	TransfersCompleted Counter
	TransfersRejected  Counter
	TransfersDeclined  Counter
	TransfersFailed    Counter
	TransferVolume     Counter
	TransferAmount     Histogram
	TransferLatency    Histogram

	// Per-kind transfer counters, indexed by transaction.Kind.
	ByKind map[transaction.Kind]Counter

	// Report metrics
	ReportsGenerated Counter
	ReportLatency    Histogram

	// Error metrics
	StoreErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Transfer metrics
		TransfersCompleted: factory.Counter("accounting.transfer.completed"),
		TransfersRejected:  factory.Counter("accounting.transfer.rejected"),
		TransfersDeclined:  factory.Counter("accounting.transfer.insufficient_balance"),
		TransfersFailed:    factory.Counter("accounting.transfer.failed"),
		TransferVolume:     factory.Counter("accounting.transfer.volume"),
		TransferAmount:     factory.Histogram("accounting.transfer.amount"),
		TransferLatency:    factory.Histogram("accounting.transfer.latency_ms"),

		// Report metrics
		ReportsGenerated: factory.Counter("accounting.report.generated"),
		ReportLatency:    factory.Histogram("accounting.report.latency_ms"),

		// Error metrics
		StoreErrors: factory.Counter("accounting.store.errors"),
	}

	m.ByKind = make(map[transaction.Kind]Counter, len(transaction.Kinds()))
	for _, k := range transaction.Kinds() {
		m.ByKind[k] = factory.Counter("accounting.transfer.kind." + k.String())
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferCompleted implements plugin.OnTransferCompleted.
func (m *MetricsExtension) OnTransferCompleted(_ context.Context, t *transaction.Transaction, elapsed time.Duration) error {
	m.TransfersCompleted.Inc()
	m.TransferVolume.Add(float64(t.Amount))
	m.TransferAmount.Observe(float64(t.Amount))
	m.TransferLatency.Observe(float64(elapsed.Milliseconds()))
	if c, ok := m.ByKind[t.Kind]; ok {
		c.Inc()
	}
	return nil
}

// OnTransferRejected implements plugin.OnTransferRejected.
func (m *MetricsExtension) OnTransferRejected(_ context.Context, _ *transaction.Transaction, reason error) error {
	if errors.Is(reason, accounting.ErrInsufficientBalance) {
		m.TransfersDeclined.Inc()
	} else {
		m.TransfersRejected.Inc()
	}
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ *transaction.Transaction, _ error) error {
	m.TransfersFailed.Inc()
	m.StoreErrors.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Reporting hooks
// ──────────────────────────────────────────────────

// OnReportGenerated implements plugin.OnReportGenerated.
func (m *MetricsExtension) OnReportGenerated(_ context.Context, _ string, elapsed time.Duration) error {
	m.ReportsGenerated.Inc()
	m.ReportLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
