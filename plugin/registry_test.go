package plugin

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xraph/accounting/transaction"
)

type recorder struct {
	name string

	mu        sync.Mutex
	completed []*transaction.Transaction
	rejected  []error
	failed    []error
	reports   []string
	inits     int
	shutdowns int
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnInit(context.Context, interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits++
	return nil
}

func (r *recorder) OnShutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdowns++
	return nil
}

func (r *recorder) OnTransferCompleted(_ context.Context, t *transaction.Transaction, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, t)
	return nil
}

func (r *recorder) OnTransferRejected(_ context.Context, _ *transaction.Transaction, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
	return nil
}

func (r *recorder) OnTransferFailed(_ context.Context, _ *transaction.Transaction, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	return nil
}

func (r *recorder) OnReportGenerated(_ context.Context, report string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

type named string

func (n named) Name() string { return string(n) }

type failing struct{ named }

func (failing) OnTransferCompleted(context.Context, *transaction.Transaction, time.Duration) error {
	return errors.New("boom")
}

type blocking struct{ named }

func (blocking) OnReportGenerated(ctx context.Context, _ string, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(named("a")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(named("a")); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count: got %d, want 1", r.Count())
	}
	if r.Get("a") == nil {
		t.Error("Get(a) returned nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}

func TestImplementedInterfaces(t *testing.T) {
	got := implementedInterfaces(&recorder{name: "rec"})
	want := []string{
		"OnInit", "OnShutdown", "OnTransferCompleted",
		"OnTransferRejected", "OnTransferFailed", "OnReportGenerated",
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if got := implementedInterfaces(named("bare")); len(got) != 0 {
		t.Errorf("bare plugin: got %v, want none", got)
	}
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(named("bare")); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	txn := &transaction.Transaction{SenderID: "alice", ReceiverID: "bob", Amount: 10}
	reason := errors.New("insufficient")

	r.EmitInit(ctx, nil)
	r.EmitTransferCompleted(ctx, txn, time.Millisecond)
	r.EmitTransferRejected(ctx, txn, reason)
	r.EmitTransferFailed(ctx, txn, reason)
	r.EmitReportGenerated(ctx, "dashboard_stats", time.Millisecond)
	r.EmitShutdown(ctx)

	if rec.inits != 1 || rec.shutdowns != 1 {
		t.Errorf("lifecycle: inits=%d shutdowns=%d", rec.inits, rec.shutdowns)
	}
	if len(rec.completed) != 1 || rec.completed[0] != txn {
		t.Errorf("completed: %v", rec.completed)
	}
	if len(rec.rejected) != 1 || !errors.Is(rec.rejected[0], reason) {
		t.Errorf("rejected: %v", rec.rejected)
	}
	if len(rec.failed) != 1 {
		t.Errorf("failed: %v", rec.failed)
	}
	if !slices.Equal(rec.reports, []string{"dashboard_stats"}) {
		t.Errorf("reports: %v", rec.reports)
	}
}

func TestEmitSurvivesPluginError(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{name: "rec"}
	_ = r.Register(failing{named("failing")})
	_ = r.Register(rec)

	r.EmitTransferCompleted(context.Background(), &transaction.Transaction{}, 0)

	if len(rec.completed) != 1 {
		t.Errorf("later plugin should still run, got %d calls", len(rec.completed))
	}
}

func TestEmitTimeout(t *testing.T) {
	r := NewRegistry().WithTimeout(20 * time.Millisecond)
	_ = r.Register(blocking{named("slow")})

	start := time.Now()
	r.EmitReportGenerated(context.Background(), "financial_report", 0)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("emit blocked for %v", elapsed)
	}
}

func TestEmitIgnoresCallerCancellation(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{name: "rec"}
	_ = r.Register(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.EmitTransferFailed(ctx, &transaction.Transaction{}, context.Canceled)

	if len(rec.failed) != 1 {
		t.Errorf("hook should run after caller cancellation, got %d calls", len(rec.failed))
	}
}
