package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/transaction"
)

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:accounting_balances"`

	AccountID string    `grove:"account_id,pk"`
	Balance   int64     `grove:"balance"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromBalanceModel(m *balanceModel) *account.Balance {
	return &account.Balance{
		AccountID: m.AccountID,
		Balance:   m.Balance,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:accounting_transactions"`

	ID             string    `grove:"id,pk"`
	Seq            int64     `grove:"seq"`
	SenderID       string    `grove:"sender_id"`
	ReceiverID     string    `grove:"receiver_id"`
	Amount         int64     `grove:"amount"`
	Kind           int16     `grove:"kind"`
	Description    string    `grove:"description"`
	CreatedAt      time.Time `grove:"created_at"`
	IdempotencyKey *string   `grove:"idempotency_key"`
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	t := &transaction.Transaction{
		ID:          txnID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Amount:      m.Amount,
		Kind:        transaction.Kind(m.Kind),
		Description: m.Description,
		Timestamp:   m.CreatedAt.UTC(),
	}
	if m.IdempotencyKey != nil {
		t.IdempotencyKey = *m.IdempotencyKey
	}
	return t, nil
}

// nullableKey stores an empty idempotency key as NULL so the partial unique
// index ignores it.
func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
