package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/accounting/transaction"
)

// DashboardStats is a point-in-time overview of the ledger.
type DashboardStats struct {
	TotalAccounts     int64           `json:"total_accounts"`
	ActiveAccounts    int64           `json:"active_accounts_30d"`
	TotalBalance      int64           `json:"total_balance"`
	AverageBalance    decimal.Decimal `json:"average_balance"`
	TransactionsToday int64           `json:"transactions_today"`
	VolumeToday       int64           `json:"volume_today"`
}

// KindTotal is the count and summed amount of one kind inside a window.
type KindTotal struct {
	Kind   transaction.Kind `json:"kind"`
	Count  int64            `json:"count"`
	Amount int64            `json:"amount"`
}

// KindSummary is the per-kind entry of a FinancialReport breakdown.
type KindSummary struct {
	Count  int64 `json:"count"`
	Amount int64 `json:"amount"`
}

// FinancialReport classifies the transactions of an inclusive window into
// income and expense.
type FinancialReport struct {
	Start             time.Time                        `json:"start"`
	End               time.Time                        `json:"end"`
	TotalTransactions int64                            `json:"total_transactions"`
	TotalIncome       int64                            `json:"total_income"`
	TotalExpense      int64                            `json:"total_expense"`
	NetBalance        int64                            `json:"net_balance"`
	ByKind            map[transaction.Kind]KindSummary `json:"by_type"`
}

// Period renders the window as "YYYY-MM-DD to YYYY-MM-DD" in UTC.
func (r *FinancialReport) Period() string {
	return r.Start.UTC().Format(time.DateOnly) + " to " + r.End.UTC().Format(time.DateOnly)
}

// Totals is the account-wide balance summary.
type Totals struct {
	Accounts int64
	Balance  int64
}
