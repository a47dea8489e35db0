package sqlite

import (
	"database/sql"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/transaction"
)

// Timestamps are stored as unix seconds.

type balanceModel struct {
	grove.BaseModel `grove:"table:accounting_balances"`

	AccountID string `grove:"account_id,pk"`
	Balance   int64  `grove:"balance"`
	UpdatedAt int64  `grove:"updated_at"`
}

func fromBalanceModel(m *balanceModel) *account.Balance {
	return &account.Balance{
		AccountID: m.AccountID,
		Balance:   m.Balance,
		UpdatedAt: time.Unix(m.UpdatedAt, 0).UTC(),
	}
}

type transactionModel struct {
	grove.BaseModel `grove:"table:accounting_transactions"`

	Seq            int64          `grove:"seq,pk,autoincrement"`
	ID             string         `grove:"id"`
	SenderID       string         `grove:"sender_id"`
	ReceiverID     string         `grove:"receiver_id"`
	Amount         int64          `grove:"amount"`
	Kind           int64          `grove:"kind"`
	Description    string         `grove:"description"`
	CreatedAt      int64          `grove:"created_at"`
	IdempotencyKey sql.NullString `grove:"idempotency_key"`
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	return &transaction.Transaction{
		ID:             txnID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Amount:         m.Amount,
		Kind:           transaction.Kind(m.Kind),
		Description:    m.Description,
		Timestamp:      time.Unix(m.CreatedAt, 0).UTC(),
		IdempotencyKey: m.IdempotencyKey.String,
	}, nil
}

func nullableKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}
