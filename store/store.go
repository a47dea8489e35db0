package store

import (
	"context"
	"time"

	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/report"
	"github.com/xraph/accounting/transaction"
	"github.com/xraph/accounting/types"
)

// Store is the unified storage interface for balances and the transaction
// log. Instead of embedding the sub-interfaces, we explicitly declare all
// methods to keep the contract in one place.
type Store interface {
	// Account methods
	GetBalance(ctx context.Context, accountID string) (int64, error)
	ListBalances(ctx context.Context, opts account.ListOpts) ([]*account.Balance, error)
	Counterparties(ctx context.Context, accountID string) (int64, error)

	// Transaction methods
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error)

	// ApplyTransfer performs one transfer as a single all-or-nothing unit:
	//
	//   - take the sender's exclusive lock (skipped when the sender is the
	//     system account), honoring ctx while waiting;
	//   - if t carries an idempotency key that is already recorded, return
	//     the recorded transaction unchanged, or ErrIdempotencyConflict when
	//     its parameters differ;
	//   - re-read the sender balance under the lock and fail with
	//     ErrInsufficientBalance if it is below t.Amount;
	//   - debit the sender, upsert-credit the receiver (skipped for the
	//     system account), stamp t.Timestamp from clock at second
	//     precision, and append t;
	//   - commit, or roll back every step on any error.
	//
	// It returns the committed transaction.
	ApplyTransfer(ctx context.Context, t *transaction.Transaction, clock types.Clock) (*transaction.Transaction, error)

	// Report methods
	AccountTotals(ctx context.Context) (report.Totals, error)
	ActiveSenders(ctx context.Context, since time.Time) (int64, error)
	KindTotals(ctx context.Context, start, end time.Time) ([]report.KindTotal, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store satisfies the per-domain interfaces.
var (
	_ account.Store     = (Store)(nil)
	_ transaction.Store = (Store)(nil)
	_ report.Store      = (Store)(nil)
)
