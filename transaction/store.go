package transaction

import (
	"context"
	"time"

	"github.com/xraph/accounting/id"
)

type Store interface {
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*Transaction, error)
	ListTransactions(ctx context.Context, opts ListOpts) ([]*Transaction, error)
}

type Order int

const (
	// OrderNewestFirst sorts by timestamp descending, then by insertion
	// order descending.
	OrderNewestFirst Order = iota
	OrderOldestFirst
)

// ListOpts filters a history listing. Start and End are inclusive and
// compared at second precision; zero values leave that side open.
type ListOpts struct {
	AccountID string
	Kinds     []Kind
	Start     time.Time
	End       time.Time
	Limit     int
	Offset    int
	Order     Order
}

// Matches reports whether t passes the account, kind and time filters.
// Limit, Offset and Order are not considered.
func (o ListOpts) Matches(t *Transaction) bool {
	if o.AccountID != "" && !t.Involves(o.AccountID) {
		return false
	}
	if len(o.Kinds) > 0 {
		found := false
		for _, k := range o.Kinds {
			if k == t.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	ts := t.Unix()
	if !o.Start.IsZero() && ts < o.Start.Unix() {
		return false
	}
	if !o.End.IsZero() && ts > o.End.Unix() {
		return false
	}
	return true
}
