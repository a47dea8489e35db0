package accounting

import (
	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/report"
	"github.com/xraph/accounting/transaction"
)

// Re-export common types for convenience so users don't have to import the
// domain packages for everyday calls.

// Transaction is re-exported from the transaction package.
type Transaction = transaction.Transaction

// Kind is re-exported from the transaction package.
type Kind = transaction.Kind

// Balance is re-exported from the account package.
type Balance = account.Balance

// DashboardStats is re-exported from the report package.
type DashboardStats = report.DashboardStats

// FinancialReport is re-exported from the report package.
type FinancialReport = report.FinancialReport

// Re-export transaction kinds
const (
	KindDeposit     = transaction.KindDeposit
	KindWithdrawal  = transaction.KindWithdrawal
	KindTransfer    = transaction.KindTransfer
	KindGroupPayout = transaction.KindGroupPayout
	KindPurchase    = transaction.KindPurchase
	KindSale        = transaction.KindSale
	KindFee         = transaction.KindFee
)

// SystemAccount is the reserved account id for value entering or leaving
// the ledger.
const SystemAccount = transaction.SystemAccount
