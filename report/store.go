package report

import (
	"context"
	"time"
)

type Store interface {
	// AccountTotals counts balance rows and sums their balances.
	AccountTotals(ctx context.Context) (Totals, error)
	// ActiveSenders counts distinct non-system senders with a transaction
	// at or after since.
	ActiveSenders(ctx context.Context, since time.Time) (int64, error)
	// KindTotals groups the transactions of [start, end] by kind. Kinds
	// with no transactions may be omitted.
	KindTotals(ctx context.Context, start, end time.Time) ([]KindTotal, error)
}
