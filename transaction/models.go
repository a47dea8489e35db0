package transaction

import (
	"time"

	"github.com/xraph/accounting/id"
)

// SystemAccount is the sentinel counterparty for money entering or leaving
// the ledger. It never holds a balance.
const SystemAccount = "system"

// Transaction is an immutable record of a committed transfer.
type Transaction struct {
	ID             id.TransactionID `json:"id"`
	SenderID       string           `json:"sender_id"`
	ReceiverID     string           `json:"receiver_id"`
	Amount         int64            `json:"amount"`
	Kind           Kind             `json:"kind"`
	Description    string           `json:"description"`
	Timestamp      time.Time        `json:"timestamp"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// Unix returns the commit time in seconds since the epoch.
func (t *Transaction) Unix() int64 { return t.Timestamp.Unix() }

// Involves reports whether accountID is the sender or the receiver.
func (t *Transaction) Involves(accountID string) bool {
	return t.SenderID == accountID || t.ReceiverID == accountID
}

// Debits reports whether the transfer takes money from the sender's balance.
func (t *Transaction) Debits() bool { return t.SenderID != SystemAccount }

// Credits reports whether the transfer adds money to the receiver's balance.
func (t *Transaction) Credits() bool { return t.ReceiverID != SystemAccount }

// SameRequest reports whether other carries the same transfer parameters.
// It is used to tell an idempotent replay from a conflicting reuse of a key.
func (t *Transaction) SameRequest(other *Transaction) bool {
	return t.SenderID == other.SenderID &&
		t.ReceiverID == other.ReceiverID &&
		t.Amount == other.Amount &&
		t.Kind == other.Kind &&
		t.Description == other.Description
}
