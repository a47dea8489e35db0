package mongo

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

	AccountID string    `grove:"account_id,pk" bson:"_id"`
	Balance   int64     `grove:"balance"       bson:"balance"`
	UpdatedAt time.Time `grove:"updated_at"    bson:"updated_at"`
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

	ID             string    `grove:"id,pk"           bson:"_id"`
	SenderID       string    `grove:"sender_id"       bson:"sender_id"`
	ReceiverID     string    `grove:"receiver_id"     bson:"receiver_id"`
	Amount         int64     `grove:"amount"          bson:"amount"`
	Kind           int32     `grove:"kind"            bson:"kind"`
	Description    string    `grove:"description"     bson:"description"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	IdempotencyKey string    `grove:"idempotency_key" bson:"idempotency_key,omitempty"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:             t.ID.String(),
		SenderID:       t.SenderID,
		ReceiverID:     t.ReceiverID,
		Amount:         t.Amount,
		Kind:           int32(t.Kind),
		Description:    t.Description,
		CreatedAt:      t.Timestamp,
		IdempotencyKey: t.IdempotencyKey,
	}
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
		Timestamp:      m.CreatedAt.UTC(),
		IdempotencyKey: m.IdempotencyKey,
	}, nil
}
