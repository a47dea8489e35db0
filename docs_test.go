package accounting_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/store/memory"
)

// TestDocumentationExamples verifies that the package documentation examples
// compile and behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		l := accounting.New(memory.New(),
			accounting.WithLogger(slog.Default()),
			accounting.WithHistoryLimit(50),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		if _, err := l.Deposit(ctx, "alice", 1000, "top-up"); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Transfer(ctx, "alice", "bob", 300, "lunch"); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Withdraw(ctx, "bob", 100, "cash out"); err != nil {
			t.Fatal(err)
		}

		alice, _ := l.BalanceOf(ctx, "alice")
		bob, _ := l.BalanceOf(ctx, "bob")
		if alice != 700 || bob != 200 {
			t.Errorf("balances: alice=%d bob=%d", alice, bob)
		}
	})

	t.Run("ExecuteExample", func(t *testing.T) {
		l := accounting.New(memory.New())
		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		_, err := l.Execute(ctx, accounting.TransferRequest{
			SenderID:       "alice",
			ReceiverID:     "shop",
			Amount:         250,
			Kind:           accounting.KindPurchase,
			IdempotencyKey: "order-1234",
		})
		switch {
		case accounting.IsInsufficientBalance(err):
			// alice has no funds yet
		case err != nil:
			t.Fatalf("unexpected error: %v", err)
		default:
			t.Fatal("expected insufficient balance")
		}
	})
}
