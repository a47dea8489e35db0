package audithook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/transaction"
)

type captured struct{ events []*AuditEvent }

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, e *AuditEvent) error {
		c.events = append(c.events, e)
		return nil
	})
}

func sample() *transaction.Transaction {
	return &transaction.Transaction{
		ID:             id.NewTransactionID(),
		SenderID:       "alice",
		ReceiverID:     "bob",
		Amount:         75,
		Kind:           transaction.KindTransfer,
		IdempotencyKey: "order-9",
	}
}

func TestTransferEvents(t *testing.T) {
	tx := sample()

	tests := []struct {
		name     string
		emit     func(e *Extension) error
		action   string
		outcome  string
		severity string
		reason   bool
	}{
		{
			name:     "completed",
			emit:     func(e *Extension) error { return e.OnTransferCompleted(context.Background(), tx, time.Millisecond) },
			action:   ActionTransferCompleted,
			outcome:  OutcomeSuccess,
			severity: SeverityInfo,
		},
		{
			name: "declined",
			emit: func(e *Extension) error {
				return e.OnTransferRejected(context.Background(), tx, accounting.ErrInsufficientBalance)
			},
			action:   ActionTransferDeclined,
			outcome:  OutcomeFailure,
			severity: SeverityWarning,
			reason:   true,
		},
		{
			name: "rejected",
			emit: func(e *Extension) error {
				return e.OnTransferRejected(context.Background(), tx, accounting.ErrInvalidTransfer)
			},
			action:   ActionTransferRejected,
			outcome:  OutcomeFailure,
			severity: SeverityWarning,
			reason:   true,
		},
		{
			name: "failed",
			emit: func(e *Extension) error {
				return e.OnTransferFailed(context.Background(), tx, accounting.ErrStorage)
			},
			action:   ActionTransferFailed,
			outcome:  OutcomeFailure,
			severity: SeverityCritical,
			reason:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c captured
			e := New(c.recorder())
			if err := tt.emit(e); err != nil {
				t.Fatal(err)
			}
			if len(c.events) != 1 {
				t.Fatalf("got %d events, want 1", len(c.events))
			}
			evt := c.events[0]
			if evt.Action != tt.action || evt.Outcome != tt.outcome || evt.Severity != tt.severity {
				t.Errorf("got %s/%s/%s", evt.Action, evt.Outcome, evt.Severity)
			}
			if evt.Resource != ResourceTransaction {
				t.Errorf("resource: got %s", evt.Resource)
			}
			if (evt.Reason != "") != tt.reason {
				t.Errorf("reason: got %q", evt.Reason)
			}
			if evt.Metadata["sender_id"] != "alice" || evt.Metadata["amount"] != int64(75) {
				t.Errorf("metadata: %v", evt.Metadata)
			}
			if evt.Metadata["idempotency_key"] != "order-9" {
				t.Errorf("idempotency key missing: %v", evt.Metadata)
			}
		})
	}
}

func TestReportEvent(t *testing.T) {
	var c captured
	e := New(c.recorder())

	if err := e.OnReportGenerated(context.Background(), "financial_report", 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if len(c.events) != 1 {
		t.Fatalf("got %d events", len(c.events))
	}
	evt := c.events[0]
	if evt.Action != ActionReportGenerated || evt.ResourceID != "financial_report" || evt.Category != CategoryReporting {
		t.Errorf("unexpected event %+v", evt)
	}
	if evt.Metadata["elapsed_ms"] != int64(5) {
		t.Errorf("elapsed: %v", evt.Metadata["elapsed_ms"])
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	tx := sample()

	t.Run("enabled", func(t *testing.T) {
		var c captured
		e := New(c.recorder(), WithEnabledActions(ActionTransferFailed))
		_ = e.OnTransferCompleted(ctx, tx, 0)
		_ = e.OnTransferFailed(ctx, tx, accounting.ErrStorage)
		if len(c.events) != 1 || c.events[0].Action != ActionTransferFailed {
			t.Errorf("got %+v", c.events)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		var c captured
		e := New(c.recorder(), WithDisabledActions(ActionReportGenerated))
		_ = e.OnReportGenerated(ctx, "dashboard", 0)
		_ = e.OnTransferCompleted(ctx, tx, 0)
		if len(c.events) != 1 || c.events[0].Action != ActionTransferCompleted {
			t.Errorf("got %+v", c.events)
		}
	})
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	failing := RecorderFunc(func(context.Context, *AuditEvent) error { return errors.New("down") })
	e := New(failing, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := e.OnTransferCompleted(context.Background(), sample(), 0); err != nil {
		t.Errorf("recorder failure leaked: %v", err)
	}
}
