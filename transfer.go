package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/transaction"
)

// MaxIdempotencyKeyLength bounds caller-supplied idempotency keys.
const MaxIdempotencyKeyLength = 128

// TransferRequest describes one value movement. The zero Kind is
// KindDeposit, which only the system account may send, so a request
// between two accounts that leaves Kind unset is rejected. Transfer fills
// in KindTransfer for plain account-to-account payments.
type TransferRequest struct {
	SenderID    string
	ReceiverID  string
	Amount      int64
	Kind        transaction.Kind
	Description string

	// IdempotencyKey, when set, makes retries of the same request return
	// the originally committed transaction instead of applying it again.
	IdempotencyKey string
}

// Execute validates and applies a transfer. It resolves to exactly one
// outcome: the new transaction id, an ErrInvalidTransfer, an
// ErrInsufficientBalance, or a *StorageError.
func (l *Ledger) Execute(ctx context.Context, req TransferRequest) (id.TransactionID, error) {
	if err := validateTransfer(req); err != nil {
		l.rejected(ctx, req, err)
		return id.Nil, err
	}

	t := &transaction.Transaction{
		ID:             id.NewTransactionID(),
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		Kind:           req.Kind,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	}

	start := time.Now()
	committed, err := l.store.ApplyTransfer(ctx, t, l.clock)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrInvalidTransfer) {
			l.rejected(ctx, req, err)
			return id.Nil, err
		}

		serr := &StorageError{Op: "transfer", Err: err}
		l.logger.Error("transfer failed",
			"sender_id", req.SenderID,
			"receiver_id", req.ReceiverID,
			"amount", req.Amount,
			"kind", req.Kind.String(),
			"error", err,
		)
		l.plugins.EmitTransferFailed(ctx, t, serr)
		return id.Nil, serr
	}

	if committed.ID != t.ID {
		l.logger.Info("transfer replayed",
			"transaction_id", committed.ID.String(),
			"idempotency_key", req.IdempotencyKey,
		)
		return committed.ID, nil
	}

	elapsed := time.Since(start)
	l.logger.Info("transfer committed",
		"transaction_id", committed.ID.String(),
		"sender_id", committed.SenderID,
		"receiver_id", committed.ReceiverID,
		"amount", committed.Amount,
		"kind", committed.Kind.String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	l.plugins.EmitTransferCompleted(ctx, committed, elapsed)

	return committed.ID, nil
}

// Transfer moves amount between two accounts as a KindTransfer.
func (l *Ledger) Transfer(ctx context.Context, senderID, receiverID string, amount int64, description string) (id.TransactionID, error) {
	return l.Execute(ctx, TransferRequest{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Amount:      amount,
		Kind:        transaction.KindTransfer,
		Description: description,
	})
}

// Deposit issues amount to accountID from the system account.
func (l *Ledger) Deposit(ctx context.Context, accountID string, amount int64, description string) (id.TransactionID, error) {
	return l.Execute(ctx, TransferRequest{
		SenderID:    transaction.SystemAccount,
		ReceiverID:  accountID,
		Amount:      amount,
		Kind:        transaction.KindDeposit,
		Description: description,
	})
}

// Withdraw removes amount from accountID to the system account.
func (l *Ledger) Withdraw(ctx context.Context, accountID string, amount int64, description string) (id.TransactionID, error) {
	return l.Execute(ctx, TransferRequest{
		SenderID:    accountID,
		ReceiverID:  transaction.SystemAccount,
		Amount:      amount,
		Kind:        transaction.KindWithdrawal,
		Description: description,
	})
}

func (l *Ledger) rejected(ctx context.Context, req TransferRequest, err error) {
	if errors.Is(err, ErrInsufficientBalance) {
		l.logger.Info("transfer rejected",
			"sender_id", req.SenderID,
			"receiver_id", req.ReceiverID,
			"amount", req.Amount,
			"reason", err,
		)
	} else {
		l.logger.Warn("transfer rejected",
			"sender_id", req.SenderID,
			"receiver_id", req.ReceiverID,
			"amount", req.Amount,
			"reason", err,
		)
	}
	l.plugins.EmitTransferRejected(ctx, &transaction.Transaction{
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		Kind:           req.Kind,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	}, err)
}

func validateTransfer(req TransferRequest) error {
	switch {
	case req.SenderID == "":
		return invalidTransfer("sender_id", "is required")
	case req.ReceiverID == "":
		return invalidTransfer("receiver_id", "is required")
	case req.Amount <= 0:
		return invalidTransfer("amount", "must be positive")
	case !req.Kind.IsValid():
		return invalidTransfer("kind", "is not a known transaction kind")
	case req.SenderID == req.ReceiverID:
		return ErrSelfTransfer
	case req.SenderID == transaction.SystemAccount && req.Kind != transaction.KindDeposit:
		return ErrSystemAccount
	case req.ReceiverID == transaction.SystemAccount && req.Kind != transaction.KindWithdrawal:
		return ErrSystemAccount
	case req.Kind == transaction.KindDeposit && req.SenderID != transaction.SystemAccount:
		return ErrSystemKind
	case req.Kind == transaction.KindWithdrawal && req.ReceiverID != transaction.SystemAccount:
		return ErrSystemKind
	case len(req.IdempotencyKey) > MaxIdempotencyKeyLength:
		return invalidTransfer("idempotency_key", "is too long")
	}
	return nil
}
