package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/transaction"
	"github.com/xraph/accounting/types"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func txn(sender, receiver string, amount int64, kind transaction.Kind) *transaction.Transaction {
	return &transaction.Transaction{
		ID:         id.NewTransactionID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Amount:     amount,
		Kind:       kind,
	}
}

// newStore opens a migrated store on a fresh database file.
func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounting.db")

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, "file:"+path+"?_pragma=busy_timeout(5000)"); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	s := New(db, conn)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func mustApply(t *testing.T, s *Store, clock types.Clock, tx *transaction.Transaction) *transaction.Transaction {
	t.Helper()
	out, err := s.ApplyTransfer(context.Background(), tx, clock)
	if err != nil {
		t.Fatalf("apply %s->%s %d: %v", tx.SenderID, tx.ReceiverID, tx.Amount, err)
	}
	return out
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	totals, err := s.AccountTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Accounts != 0 || totals.Balance != 0 {
		t.Errorf("fresh database: got %+v", totals)
	}
}

func TestTransfersConserveValue(t *testing.T) {
	s := newStore(t)
	clock := &stepClock{now: base.Add(750 * time.Millisecond)}
	ctx := context.Background()

	dep := mustApply(t, s, clock, txn(transaction.SystemAccount, "alice", 100, transaction.KindDeposit))
	if !dep.Timestamp.Equal(base) {
		t.Errorf("timestamp: got %v, want %v", dep.Timestamp, base)
	}
	mustApply(t, s, clock, txn("alice", "bob", 30, transaction.KindTransfer))

	for acct, want := range map[string]int64{"alice": 70, "bob": 30, transaction.SystemAccount: 0} {
		if bal, _ := s.GetBalance(ctx, acct); bal != want {
			t.Errorf("%s: got %d, want %d", acct, bal, want)
		}
	}

	totals, err := s.AccountTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Balance != 100 || totals.Accounts != 2 {
		t.Errorf("totals: got %+v, want 2 accounts holding 100", totals)
	}

	got, err := s.GetTransaction(ctx, dep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 100 || got.Kind != transaction.KindDeposit || !got.Timestamp.Equal(base) {
		t.Errorf("stored deposit: got %+v", got)
	}
}

func TestInsufficientBalanceLeavesNoTrace(t *testing.T) {
	s := newStore(t)
	clock := &stepClock{now: base}
	ctx := context.Background()

	mustApply(t, s, clock, txn(transaction.SystemAccount, "alice", 50, transaction.KindDeposit))

	_, err := s.ApplyTransfer(ctx, txn("alice", "bob", 51, transaction.KindTransfer), clock)
	if !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	_, err = s.ApplyTransfer(ctx, txn("carol", "bob", 1, transaction.KindTransfer), clock)
	if !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("unknown sender: got %v, want ErrInsufficientBalance", err)
	}

	if bal, _ := s.GetBalance(ctx, "bob"); bal != 0 {
		t.Errorf("bob: got %d, want 0", bal)
	}
	all, err := s.ListTransactions(ctx, transaction.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("log: got %d entries, want only the deposit", len(all))
	}
}

func TestConcurrentDebitsFromOneSender(t *testing.T) {
	s := newStore(t)
	clock := &stepClock{now: base}
	ctx := context.Background()

	mustApply(t, s, clock, txn(transaction.SystemAccount, "A", 100, transaction.KindDeposit))

	const workers = 20
	var (
		wg               sync.WaitGroup
		mu               sync.Mutex
		ok, insufficient int
		unexpected       []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyTransfer(ctx, txn("A", "B", 60, transaction.KindTransfer), clock)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, accounting.ErrInsufficientBalance):
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != 1 || insufficient != workers-1 {
		t.Errorf("got ok=%d insufficient=%d, want ok=1 insufficient=%d", ok, insufficient, workers-1)
	}
	if bal, _ := s.GetBalance(ctx, "A"); bal != 40 {
		t.Errorf("A: got %d, want 40", bal)
	}
	if bal, _ := s.GetBalance(ctx, "B"); bal != 60 {
		t.Errorf("B: got %d, want 60", bal)
	}
}

func TestIdempotentReplay(t *testing.T) {
	s := newStore(t)
	clock := &stepClock{now: base}
	ctx := context.Background()

	mustApply(t, s, clock, txn(transaction.SystemAccount, "alice", 100, transaction.KindDeposit))

	first := txn("alice", "bob", 10, transaction.KindTransfer)
	first.IdempotencyKey = "order-1"
	committed := mustApply(t, s, clock, first)

	retry := txn("alice", "bob", 10, transaction.KindTransfer)
	retry.IdempotencyKey = "order-1"
	replayed := mustApply(t, s, clock, retry)
	if replayed.ID != committed.ID {
		t.Errorf("replay: got id %s, want %s", replayed.ID, committed.ID)
	}
	if bal, _ := s.GetBalance(ctx, "alice"); bal != 90 {
		t.Errorf("alice: got %d, want 90 after a single debit", bal)
	}

	conflict := txn("alice", "bob", 11, transaction.KindTransfer)
	conflict.IdempotencyKey = "order-1"
	if _, err := s.ApplyTransfer(ctx, conflict, clock); !errors.Is(err, accounting.ErrIdempotencyConflict) {
		t.Errorf("conflict: got %v, want ErrIdempotencyConflict", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	s := newStore(t)
	clock := &stepClock{now: base}
	ctx := context.Background()

	mustApply(t, s, clock, txn(transaction.SystemAccount, "alice", 100, transaction.KindDeposit))
	clock.now = base.Add(time.Minute)
	mustApply(t, s, clock, txn("alice", "bob", 10, transaction.KindTransfer))
	clock.now = base.Add(2 * time.Minute)
	mustApply(t, s, clock, txn("alice", "shop", 20, transaction.KindPurchase))

	tests := []struct {
		name string
		opts transaction.ListOpts
		want []int64
	}{
		{name: "newest first", opts: transaction.ListOpts{}, want: []int64{20, 10, 100}},
		{name: "oldest first", opts: transaction.ListOpts{Order: transaction.OrderOldestFirst}, want: []int64{100, 10, 20}},
		{name: "by account", opts: transaction.ListOpts{AccountID: "bob"}, want: []int64{10}},
		{name: "by kind", opts: transaction.ListOpts{Kinds: []transaction.Kind{transaction.KindPurchase, transaction.KindDeposit}}, want: []int64{20, 100}},
		{name: "window inclusive", opts: transaction.ListOpts{Start: base.Add(time.Minute), End: base.Add(time.Minute)}, want: []int64{10}},
		{name: "window bounds", opts: transaction.ListOpts{Start: base, End: base.Add(time.Minute)}, want: []int64{10, 100}},
		{name: "limit offset", opts: transaction.ListOpts{Limit: 1, Offset: 1}, want: []int64{10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i, tx := range got {
				if tx.Amount != tt.want[i] {
					t.Errorf("record %d: got amount %d, want %d", i, tx.Amount, tt.want[i])
				}
			}
		})
	}
}

func TestKindTotals(t *testing.T) {
	s := newStore(t)
	clock := &stepClock{now: base}
	ctx := context.Background()

	mustApply(t, s, clock, txn(transaction.SystemAccount, "alice", 100, transaction.KindDeposit))
	mustApply(t, s, clock, txn(transaction.SystemAccount, "alice", 50, transaction.KindDeposit))
	mustApply(t, s, clock, txn("alice", "shop", 30, transaction.KindPurchase))
	clock.now = base.Add(time.Hour)
	mustApply(t, s, clock, txn("alice", transaction.SystemAccount, 5, transaction.KindWithdrawal))

	totals, err := s.KindTotals(ctx, base, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d kinds, want 2: %+v", len(totals), totals)
	}
	if k := totals[0]; k.Kind != transaction.KindDeposit || k.Count != 2 || k.Amount != 150 {
		t.Errorf("deposits: got %+v", k)
	}
	if k := totals[1]; k.Kind != transaction.KindPurchase || k.Count != 1 || k.Amount != 30 {
		t.Errorf("purchases: got %+v", k)
	}

	empty, err := s.KindTotals(ctx, base.Add(-time.Hour), base.Add(-time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("empty window: got %+v", empty)
	}

	senders, err := s.ActiveSenders(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if senders != 1 {
		t.Errorf("active senders: got %d, want 1", senders)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetTransaction(context.Background(), id.NewTransactionID())
	if !errors.Is(err, accounting.ErrTransactionNotFound) {
		t.Errorf("got %v, want ErrTransactionNotFound", err)
	}
}
