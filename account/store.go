package account

import (
	"context"
	"strings"
)

type Store interface {
	// GetBalance returns 0 for an account that has never been credited.
	GetBalance(ctx context.Context, accountID string) (int64, error)
	ListBalances(ctx context.Context, opts ListOpts) ([]*Balance, error)
	// Counterparties counts the distinct senders that ever paid accountID.
	Counterparties(ctx context.Context, accountID string) (int64, error)
}

type Order int

const (
	OrderBalanceDesc Order = iota
	OrderBalanceAsc
	OrderAccountID
)

type ListOpts struct {
	Limit  int
	Offset int
	Order  Order

	// IDContains keeps only accounts whose id contains the substring.
	IDContains string
	// IDExcludes drops accounts whose id contains the substring.
	IDExcludes string
}

// Matches applies the id filters.
func (o ListOpts) Matches(accountID string) bool {
	if o.IDContains != "" && !strings.Contains(accountID, o.IDContains) {
		return false
	}
	if o.IDExcludes != "" && strings.Contains(accountID, o.IDExcludes) {
		return false
	}
	return true
}

// Less orders two balances according to o.Order. Ties on balance fall back
// to account id so listings are stable.
func (o ListOpts) Less(a, b *Balance) bool {
	switch o.Order {
	case OrderBalanceAsc:
		if a.Balance != b.Balance {
			return a.Balance < b.Balance
		}
	case OrderAccountID:
	default:
		if a.Balance != b.Balance {
			return a.Balance > b.Balance
		}
	}
	return a.AccountID < b.AccountID
}
