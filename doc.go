// Package accounting provides an embeddable balance ledger engine for Go
// applications.
//
// Accounting is designed as a library, not a service. Import it directly into
// your Go application and back it with the store that fits your deployment.
// It provides:
//
//   - Atomic transfers between accounts with no-overdraft guarantees
//   - Per-sender serialization so concurrent debits never double-spend
//   - Optional idempotency keys for safe client retries
//   - Balance rankings and newest-first transaction history
//   - Dashboard statistics and income/expense financial reports
//   - Pluggable lifecycle hooks for metrics, audit trails and event publishing
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/accounting"
//	    "github.com/xraph/accounting/store/memory"
//	)
//
//	l := accounting.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Transfers
//
// Value enters the ledger through a deposit from the system account, moves
// between accounts with transfers, and leaves through withdrawals:
//
//	l.Deposit(ctx, "alice", 1000, "top-up")
//	l.Transfer(ctx, "alice", "bob", 300, "lunch")
//	l.Withdraw(ctx, "bob", 100, "cash out")
//
// Execute accepts the full request, including a transaction kind and an
// idempotency key:
//
//	txnID, err := l.Execute(ctx, accounting.TransferRequest{
//	    SenderID:       "alice",
//	    ReceiverID:     "shop",
//	    Amount:         250,
//	    Kind:           accounting.KindPurchase,
//	    IdempotencyKey: "order-1234",
//	})
//	switch {
//	case accounting.IsInsufficientBalance(err):
//	    // sender cannot cover the amount
//	case accounting.IsInvalidTransfer(err):
//	    // request was malformed
//	case err != nil:
//	    // storage failure; nothing was applied
//	}
//
// # Amounts
//
// Amounts are int64 in the smallest currency unit. The engine never lets a
// balance go negative, and every transfer is all-or-nothing: either the
// debit, the credit and the log entry are all visible, or none are.
//
// # Reports
//
// DashboardStats summarizes accounts, recent senders and today's volume
// (UTC day). FinancialReport classifies a window's transactions into income
// (deposits and sales) and expense (withdrawals and purchases).
//
// # Plugins
//
// Plugins observe committed, rejected and failed transfers and generated
// reports. The observability, audit_hook and events packages ship metrics,
// audit trail and RabbitMQ publishing plugins:
//
//	pub, _ := events.Dial(amqpURL, events.Config{DeclareExchange: true})
//	l := accounting.New(store,
//	    accounting.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(nil))),
//	    accounting.WithPlugin(pub),
//	)
//
// # TypeID
//
// Transactions use TypeID for globally unique, type-safe identifiers:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41  // Transaction ID
//
// TypeIDs are K-sortable, making them ideal for database indexes.
package accounting
