package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/report"
	"github.com/xraph/accounting/transaction"
)

// AccountView is a balance with its display name.
type AccountView struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionView is a transaction with display names for both sides.
type TransactionView struct {
	*transaction.Transaction
	SenderName   string `json:"sender_name"`
	ReceiverName string `json:"receiver_name"`
}

// ──────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────

// BalanceOf returns the current balance of accountID. An account that was
// never credited has balance 0.
func (l *Ledger) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, invalidInput("account_id", "is required")
	}
	if accountID == transaction.SystemAccount {
		return 0, nil
	}
	bal, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		return 0, &StorageError{Op: "balance_of", Err: err}
	}
	return bal, nil
}

// Account returns the balance and display name of accountID.
func (l *Ledger) Account(ctx context.Context, accountID string) (*AccountView, error) {
	bal, err := l.BalanceOf(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AccountView{
		AccountID: accountID,
		Name:      l.names.Name(ctx, accountID),
		Balance:   bal,
	}, nil
}

// AllBalances ranks accounts, highest balance first unless opts says
// otherwise. A zero limit uses the configured balance limit.
func (l *Ledger) AllBalances(ctx context.Context, opts account.ListOpts) ([]*AccountView, error) {
	if opts.Limit <= 0 {
		opts.Limit = l.balanceLimit
	}
	balances, err := l.store.ListBalances(ctx, opts)
	if err != nil {
		return nil, &StorageError{Op: "all_balances", Err: err}
	}

	ids := make([]string, len(balances))
	for i, b := range balances {
		ids[i] = b.AccountID
	}
	names := l.names.Names(ctx, ids...)

	views := make([]*AccountView, len(balances))
	for i, b := range balances {
		views[i] = &AccountView{
			AccountID: b.AccountID,
			Name:      names[b.AccountID],
			Balance:   b.Balance,
			UpdatedAt: b.UpdatedAt,
		}
	}
	return views, nil
}

// Counterparties counts the distinct accounts that have paid accountID.
func (l *Ledger) Counterparties(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, invalidInput("account_id", "is required")
	}
	n, err := l.store.Counterparties(ctx, accountID)
	if err != nil {
		return 0, &StorageError{Op: "counterparties", Err: err}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// History
// ──────────────────────────────────────────────────

// TransactionHistory returns the newest transactions across all accounts.
// A non-positive limit uses the configured history limit.
func (l *Ledger) TransactionHistory(ctx context.Context, limit int) ([]*TransactionView, error) {
	return l.ListTransactions(ctx, transaction.ListOpts{Limit: limit})
}

// TransactionHistoryFor returns the newest transactions in which accountID
// is the sender or the receiver.
func (l *Ledger) TransactionHistoryFor(ctx context.Context, accountID string, limit int) ([]*TransactionView, error) {
	if accountID == "" {
		return nil, invalidInput("account_id", "is required")
	}
	return l.ListTransactions(ctx, transaction.ListOpts{AccountID: accountID, Limit: limit})
}

// ListTransactions runs a filtered history query.
func (l *Ledger) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*TransactionView, error) {
	if opts.Limit <= 0 {
		opts.Limit = l.historyLimit
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.End.Before(opts.Start) {
		return nil, invalidInput("end", "is before start")
	}

	txns, err := l.store.ListTransactions(ctx, opts)
	if err != nil {
		return nil, &StorageError{Op: "transaction_history", Err: err}
	}
	return l.views(ctx, txns), nil
}

// GetTransaction looks up a single transaction. Unknown ids return
// ErrTransactionNotFound.
func (l *Ledger) GetTransaction(ctx context.Context, txnID id.TransactionID) (*TransactionView, error) {
	if txnID.IsNil() {
		return nil, invalidInput("transaction_id", "is required")
	}
	t, err := l.store.GetTransaction(ctx, txnID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, &StorageError{Op: "get_transaction", Err: err}
	}
	return l.views(ctx, []*transaction.Transaction{t})[0], nil
}

func (l *Ledger) views(ctx context.Context, txns []*transaction.Transaction) []*TransactionView {
	ids := make([]string, 0, len(txns)*2)
	for _, t := range txns {
		ids = append(ids, t.SenderID, t.ReceiverID)
	}
	names := l.names.Names(ctx, ids...)

	views := make([]*TransactionView, len(txns))
	for i, t := range txns {
		views[i] = &TransactionView{
			Transaction:  t,
			SenderName:   names[t.SenderID],
			ReceiverName: names[t.ReceiverID],
		}
	}
	return views
}

// ──────────────────────────────────────────────────
// Reporting
// ──────────────────────────────────────────────────

// DashboardStats summarizes accounts, recent activity and today's volume.
func (l *Ledger) DashboardStats(ctx context.Context) (*report.DashboardStats, error) {
	start := time.Now()
	stats, err := l.reports.Dashboard(ctx)
	if err != nil {
		return nil, l.reportError("dashboard_stats", err)
	}
	l.plugins.EmitReportGenerated(ctx, "dashboard_stats", time.Since(start))
	return stats, nil
}

// FinancialReport classifies the transactions of [start, end] into income
// and expense. Zero bounds default to the last month up to now.
func (l *Ledger) FinancialReport(ctx context.Context, start, end time.Time) (*report.FinancialReport, error) {
	began := time.Now()
	r, err := l.reports.Financial(ctx, start, end)
	if err != nil {
		return nil, l.reportError("financial_report", err)
	}
	l.plugins.EmitReportGenerated(ctx, "financial_report", time.Since(began))
	return r, nil
}

func (l *Ledger) reportError(op string, err error) error {
	if errors.Is(err, report.ErrInvalidWindow) {
		return invalidInput("end", "is before start")
	}
	l.logger.Error("report failed", "report", op, "error", err)
	if errors.Is(err, report.ErrOverflow) {
		return fmt.Errorf("accounting: %s: %w", op, err)
	}
	return &StorageError{Op: op, Err: err}
}
