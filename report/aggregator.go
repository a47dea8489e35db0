// Package report computes dashboard statistics and financial reports from
// the balance store and the transaction log.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/accounting/transaction"
	"github.com/xraph/accounting/types"
)

// DefaultActiveWindow is how far back a sender counts as active.
const DefaultActiveWindow = 30 * 24 * time.Hour

var (
	ErrInvalidWindow = errors.New("report: window end is before start")
	ErrOverflow      = errors.New("report: total exceeds int64 range")
)

// Aggregator is stateless apart from its dependencies; every call reads
// fresh data.
type Aggregator struct {
	store        Store
	clock        types.Clock
	activeWindow time.Duration
}

// NewAggregator creates an Aggregator. A zero activeWindow uses
// DefaultActiveWindow.
func NewAggregator(s Store, clock types.Clock, activeWindow time.Duration) *Aggregator {
	if activeWindow <= 0 {
		activeWindow = DefaultActiveWindow
	}
	return &Aggregator{store: s, clock: clock, activeWindow: activeWindow}
}

// Dashboard runs the three underlying queries concurrently. Any failure
// fails the whole call.
func (a *Aggregator) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := a.clock.Now()
	dayStart, dayEnd := types.DayBounds(now)

	var (
		totals Totals
		active int64
		today  []KindTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = a.store.AccountTotals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = a.store.ActiveSenders(gctx, now.Add(-a.activeWindow))
		return err
	})
	g.Go(func() error {
		var err error
		today, err = a.store.KindTotals(gctx, dayStart, dayEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalAccounts:  totals.Accounts,
		ActiveAccounts: active,
		TotalBalance:   totals.Balance,
		AverageBalance: decimal.Zero,
	}
	if totals.Accounts > 0 {
		stats.AverageBalance = decimal.NewFromInt(totals.Balance).
			Div(decimal.NewFromInt(totals.Accounts)).
			Round(2)
	}

	var ok bool
	for _, kt := range today {
		stats.TransactionsToday += kt.Count
		if stats.VolumeToday, ok = types.CheckedAdd(stats.VolumeToday, kt.Amount); !ok {
			return nil, fmt.Errorf("%w: volume today", ErrOverflow)
		}
	}
	return stats, nil
}

// Financial builds the report for the inclusive window [start, end].
// When both bounds are zero the window is the last month up to now; a zero
// end alone means now.
func (a *Aggregator) Financial(ctx context.Context, start, end time.Time) (*FinancialReport, error) {
	start, end = a.window(start, end)
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	totals, err := a.store.KindTotals(ctx, start, end)
	if err != nil {
		return nil, err
	}

	r := &FinancialReport{
		Start:  start,
		End:    end,
		ByKind: make(map[transaction.Kind]KindSummary, len(totals)),
	}

	var ok bool
	for _, kt := range totals {
		if kt.Count == 0 {
			continue
		}
		r.TotalTransactions += kt.Count

		sum := r.ByKind[kt.Kind]
		sum.Count += kt.Count
		if sum.Amount, ok = types.CheckedAdd(sum.Amount, kt.Amount); !ok {
			return nil, fmt.Errorf("%w: %s", ErrOverflow, kt.Kind)
		}
		r.ByKind[kt.Kind] = sum

		switch kt.Kind.Class() {
		case transaction.ClassIncome:
			r.TotalIncome, ok = types.CheckedAdd(r.TotalIncome, kt.Amount)
		case transaction.ClassExpense:
			r.TotalExpense, ok = types.CheckedAdd(r.TotalExpense, kt.Amount)
		default:
			ok = true
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrOverflow, kt.Kind.Class())
		}
	}

	if r.NetBalance, ok = types.CheckedSub(r.TotalIncome, r.TotalExpense); !ok {
		return nil, fmt.Errorf("%w: net balance", ErrOverflow)
	}
	return r, nil
}

func (a *Aggregator) window(start, end time.Time) (time.Time, time.Time) {
	now := types.TruncateSecond(a.clock.Now())
	switch {
	case start.IsZero() && end.IsZero():
		return now.AddDate(0, -1, 0), now
	case end.IsZero():
		return types.TruncateSecond(start), now
	case start.IsZero():
		return time.Unix(0, 0).UTC(), types.TruncateSecond(end)
	default:
		return types.TruncateSecond(start), types.TruncateSecond(end)
	}
}
