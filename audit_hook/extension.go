// Package audithook bridges accounting lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// a particular audit system. Callers inject a RecorderFunc adapter, or use
// MongoRecorder to persist events to a MongoDB collection.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/plugin"
	"github.com/xraph/accounting/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnTransferCompleted = (*Extension)(nil)
	_ plugin.OnTransferRejected  = (*Extension)(nil)
	_ plugin.OnTransferFailed    = (*Extension)(nil)
	_ plugin.OnReportGenerated   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"      bson:"action"`
	Resource   string         `json:"resource"    bson:"resource"`
	Category   string         `json:"category"    bson:"category"`
	ResourceID string         `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"    bson:"metadata,omitempty"`
	Outcome    string         `json:"outcome"     bson:"outcome"`
	Severity   string         `json:"severity"    bson:"severity"`
	Reason     string         `json:"reason,omitempty"      bson:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges accounting lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferCompleted implements plugin.OnTransferCompleted.
func (e *Extension) OnTransferCompleted(ctx context.Context, t *transaction.Transaction, elapsed time.Duration) error {
	return e.record(ctx, ActionTransferCompleted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, t.ID.String(), CategoryLedger, nil,
		transferPairs(t, "elapsed_ms", elapsed.Milliseconds())...,
	)
}

// OnTransferRejected implements plugin.OnTransferRejected. Insufficient
// balance is recorded as a decline, everything else as a rejection.
func (e *Extension) OnTransferRejected(ctx context.Context, t *transaction.Transaction, reason error) error {
	action := ActionTransferRejected
	if errors.Is(reason, accounting.ErrInsufficientBalance) {
		action = ActionTransferDeclined
	}
	return e.record(ctx, action, SeverityWarning, OutcomeFailure,
		ResourceTransaction, "", CategoryLedger, reason,
		transferPairs(t)...,
	)
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, t *transaction.Transaction, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityCritical, OutcomeFailure,
		ResourceTransaction, t.ID.String(), CategoryLedger, err,
		transferPairs(t)...,
	)
}

// ──────────────────────────────────────────────────
// Reporting hooks
// ──────────────────────────────────────────────────

// OnReportGenerated implements plugin.OnReportGenerated.
func (e *Extension) OnReportGenerated(ctx context.Context, report string, elapsed time.Duration) error {
	return e.record(ctx, ActionReportGenerated, SeverityInfo, OutcomeSuccess,
		ResourceReport, report, CategoryReporting, nil,
		"report", report,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func transferPairs(t *transaction.Transaction, extra ...any) []any {
	pairs := []any{
		"sender_id", t.SenderID,
		"receiver_id", t.ReceiverID,
		"amount", t.Amount,
		"kind", t.Kind.String(),
	}
	if t.IdempotencyKey != "" {
		pairs = append(pairs, "idempotency_key", t.IdempotencyKey)
	}
	return append(pairs, extra...)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
