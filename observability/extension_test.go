package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/transaction"
)

type fakeCounter struct{ v float64 }

func (c *fakeCounter) Inc()          { c.v++ }
func (c *fakeCounter) Add(v float64) { c.v += v }

type fakeHistogram struct{ obs []float64 }

func (h *fakeHistogram) Observe(v float64) { h.obs = append(h.obs, v) }

type fakeFactory struct {
	counters   map[string]*fakeCounter
	histograms map[string]*fakeHistogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters:   make(map[string]*fakeCounter),
		histograms: make(map[string]*fakeHistogram),
	}
}

func (f *fakeFactory) Counter(name string) Counter {
	c := &fakeCounter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) Histogram {
	h := &fakeHistogram{}
	f.histograms[name] = h
	return h
}

func TestTransferCompletedMetrics(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)
	ctx := context.Background()

	for _, amount := range []int64{100, 250} {
		tx := &transaction.Transaction{SenderID: "alice", ReceiverID: "bob", Amount: amount, Kind: transaction.KindTransfer}
		if err := m.OnTransferCompleted(ctx, tx, 3*time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	if got := f.counters["accounting.transfer.completed"].v; got != 2 {
		t.Errorf("completed: got %v, want 2", got)
	}
	if got := f.counters["accounting.transfer.volume"].v; got != 350 {
		t.Errorf("volume: got %v, want 350", got)
	}
	if got := f.counters["accounting.transfer.kind.transfer"].v; got != 2 {
		t.Errorf("kind counter: got %v, want 2", got)
	}
	if got := f.counters["accounting.transfer.kind.deposit"].v; got != 0 {
		t.Errorf("deposit counter: got %v, want 0", got)
	}
	if got := len(f.histograms["accounting.transfer.latency_ms"].obs); got != 2 {
		t.Errorf("latency observations: got %d, want 2", got)
	}
}

func TestTransferRejectedSplitsInsufficientBalance(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)
	ctx := context.Background()
	tx := &transaction.Transaction{SenderID: "alice", ReceiverID: "bob", Amount: 1}

	reasons := []error{
		fmt.Errorf("wrapped: %w", accounting.ErrInsufficientBalance),
		accounting.ErrInvalidTransfer,
		accounting.ErrInvalidTransfer,
	}
	for _, r := range reasons {
		_ = m.OnTransferRejected(ctx, tx, r)
	}

	if got := f.counters["accounting.transfer.insufficient_balance"].v; got != 1 {
		t.Errorf("insufficient: got %v, want 1", got)
	}
	if got := f.counters["accounting.transfer.rejected"].v; got != 2 {
		t.Errorf("rejected: got %v, want 2", got)
	}
}

func TestFailureAndReportMetrics(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)
	ctx := context.Background()

	_ = m.OnTransferFailed(ctx, &transaction.Transaction{}, accounting.ErrStorage)
	_ = m.OnReportGenerated(ctx, "dashboard", 12*time.Millisecond)

	if got := f.counters["accounting.transfer.failed"].v; got != 1 {
		t.Errorf("failed: got %v, want 1", got)
	}
	if got := f.counters["accounting.report.generated"].v; got != 1 {
		t.Errorf("reports: got %v, want 1", got)
	}
	if obs := f.histograms["accounting.report.latency_ms"].obs; len(obs) != 1 || obs[0] != 12 {
		t.Errorf("report latency: got %v", obs)
	}
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewPrometheusFactory(reg)
	m := NewMetricsExtension(f)

	tx := &transaction.Transaction{SenderID: transaction.SystemAccount, ReceiverID: "alice", Amount: 40, Kind: transaction.KindDeposit}
	_ = m.OnTransferCompleted(context.Background(), tx, time.Millisecond)

	c, ok := f.Counter("accounting.transfer.volume").(prometheus.Counter)
	if !ok {
		t.Fatal("expected a prometheus counter")
	}
	if got := testutil.ToFloat64(c); got != 40 {
		t.Errorf("volume: got %v, want 40", got)
	}
	n, err := testutil.GatherAndCount(reg, "accounting_transfer_completed")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("registered completed counters: got %d, want 1", n)
	}
}
