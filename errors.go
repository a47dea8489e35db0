package accounting

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("accounting: not found")
	ErrInvalidInput = errors.New("accounting: invalid input")

	// Transfer outcomes
	ErrInvalidTransfer     = errors.New("accounting: invalid transfer")
	ErrInsufficientBalance = errors.New("accounting: insufficient balance")
	ErrStorage             = errors.New("accounting: storage failure")

	// Invalid transfer details
	ErrSelfTransfer        = fmt.Errorf("%w: sender and receiver are the same account", ErrInvalidTransfer)
	ErrSystemAccount       = fmt.Errorf("%w: system account used with the wrong kind", ErrInvalidTransfer)
	ErrSystemKind          = fmt.Errorf("%w: deposits and withdrawals must involve the system account", ErrInvalidTransfer)
	ErrIdempotencyConflict = fmt.Errorf("%w: idempotency key reused with different parameters", ErrInvalidTransfer)
	ErrAmountOverflow      = fmt.Errorf("%w: balance would overflow", ErrInvalidTransfer)

	// Lookup errors
	ErrTransactionNotFound = fmt.Errorf("%w: transaction", ErrNotFound)

	// Store errors
	ErrStoreClosed = errors.New("accounting: store is closed")
)

// ValidationError represents a validation failure with details. It matches
// ErrInvalidTransfer or ErrInvalidInput via errors.Is, depending on the
// operation that produced it.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("accounting: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidInput
	}
	return e.Err
}

// StorageError reports that the backing store was unavailable or a commit
// failed. No partial state is visible after one is returned, so the
// operation is safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("accounting: storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidTransfer returns true for caller errors that must not be retried.
func IsInvalidTransfer(err error) bool {
	return errors.Is(err, ErrInvalidTransfer)
}

// IsInsufficientBalance returns true if a transfer was rejected for lack of funds.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

func invalidTransfer(field, message string) error {
	return ValidationError{Field: field, Message: message, Err: ErrInvalidTransfer}
}

func invalidInput(field, message string) error {
	return ValidationError{Field: field, Message: message, Err: ErrInvalidInput}
}
