// Package memory provides an in-process Store for tests and single-node
// development. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/report"
	accountingstore "github.com/xraph/accounting/store"
	"github.com/xraph/accounting/transaction"
	"github.com/xraph/accounting/types"
)

// compile-time interface check
var _ accountingstore.Store = (*Store)(nil)

// CommitHook runs inside the commit critical section after all checks have
// passed and before any change becomes visible. A non-nil error aborts the
// transfer with nothing applied.
type CommitHook func(ctx context.Context, t *transaction.Transaction) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a CommitHook.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.beforeCommit = h }
}

// Store keeps balances and the transaction log in maps guarded by a
// read/write mutex. Transfers from the same sender are serialized by a
// per-account lock held across the balance check and the commit; the
// mutex itself is only held while changes are applied.
type Store struct {
	locks *account.Locker

	mu       sync.RWMutex
	balances map[string]*account.Balance
	log      []*transaction.Transaction
	byID     map[string]int
	byKey    map[string]int

	beforeCommit CommitHook
	closed       atomic.Bool
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		locks:    account.NewLocker(),
		balances: make(map[string]*account.Balance),
		log:      make([]*transaction.Transaction, 0),
		byID:     make(map[string]int),
		byKey:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==================== Core ====================

func (s *Store) Migrate(context.Context) error { return s.ready() }

func (s *Store) Ping(context.Context) error { return s.ready() }

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Store) ready() error {
	if s.closed.Load() {
		return accounting.ErrStoreClosed
	}
	return nil
}

// ==================== Transfers ====================

func (s *Store) ApplyTransfer(ctx context.Context, t *transaction.Transaction, clock types.Clock) (*transaction.Transaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if t.Debits() {
		release, err := s.locks.Acquire(ctx, t.SenderID)
		if err != nil {
			return nil, fmt.Errorf("accounting/memory: lock %s: %w", t.SenderID, err)
		}
		defer release()
	}

	s.mu.RLock()
	prior, replay := s.lookupKey(t)
	var balance int64
	if b, ok := s.balances[t.SenderID]; ok {
		balance = b.Balance
	}
	s.mu.RUnlock()

	if replay {
		return replayOf(prior, t)
	}
	if t.Debits() && balance < t.Amount {
		return nil, accounting.ErrInsufficientBalance
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("accounting/memory: transfer aborted: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Deposits do not take a sender lock, so a concurrent request with the
	// same key may have committed in between.
	if prior, replay := s.lookupKey(t); replay {
		return replayOf(prior, t)
	}

	var credited int64
	if t.Credits() {
		var current int64
		if b, ok := s.balances[t.ReceiverID]; ok {
			current = b.Balance
		}
		var ok bool
		if credited, ok = types.CheckedAdd(current, t.Amount); !ok {
			return nil, accounting.ErrAmountOverflow
		}
	}

	committed := *t
	committed.Timestamp = types.TruncateSecond(clock.Now())

	if s.beforeCommit != nil {
		if err := s.beforeCommit(ctx, &committed); err != nil {
			return nil, fmt.Errorf("accounting/memory: commit: %w", err)
		}
	}

	if committed.Debits() {
		b := s.balances[committed.SenderID]
		s.balances[committed.SenderID] = &account.Balance{
			AccountID: b.AccountID,
			Balance:   b.Balance - committed.Amount,
			UpdatedAt: committed.Timestamp,
		}
	}
	if committed.Credits() {
		s.balances[committed.ReceiverID] = &account.Balance{
			AccountID: committed.ReceiverID,
			Balance:   credited,
			UpdatedAt: committed.Timestamp,
		}
	}

	s.log = append(s.log, &committed)
	s.byID[committed.ID.String()] = len(s.log) - 1
	if committed.IdempotencyKey != "" {
		s.byKey[committed.IdempotencyKey] = len(s.log) - 1
	}

	out := committed
	return &out, nil
}

// lookupKey must be called with s.mu held.
func (s *Store) lookupKey(t *transaction.Transaction) (*transaction.Transaction, bool) {
	if t.IdempotencyKey == "" {
		return nil, false
	}
	idx, ok := s.byKey[t.IdempotencyKey]
	if !ok {
		return nil, false
	}
	return s.log[idx], true
}

func replayOf(prior, t *transaction.Transaction) (*transaction.Transaction, error) {
	if !prior.SameRequest(t) {
		return nil, accounting.ErrIdempotencyConflict
	}
	out := *prior
	return &out, nil
}

// ==================== Account Store ====================

func (s *Store) GetBalance(_ context.Context, accountID string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[accountID]; ok {
		return b.Balance, nil
	}
	return 0, nil
}

func (s *Store) ListBalances(_ context.Context, opts account.ListOpts) ([]*account.Balance, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	result := make([]*account.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		if opts.Matches(b.AccountID) {
			cp := *b
			result = append(result, &cp)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *account.Balance) int {
		switch {
		case opts.Less(a, b):
			return -1
		case opts.Less(b, a):
			return 1
		default:
			return 0
		}
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Counterparties(_ context.Context, accountID string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	senders := make(map[string]struct{})
	for _, t := range s.log {
		if t.ReceiverID == accountID && t.SenderID != transaction.SystemAccount {
			senders[t.SenderID] = struct{}{}
		}
	}
	return int64(len(senders)), nil
}

// ==================== Transaction Store ====================

func (s *Store) GetTransaction(_ context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[txnID.String()]
	if !ok {
		return nil, accounting.ErrTransactionNotFound
	}
	out := *s.log[idx]
	return &out, nil
}

func (s *Store) ListTransactions(_ context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	type entry struct {
		seq int
		t   transaction.Transaction
	}

	s.mu.RLock()
	matched := make([]entry, 0)
	for i, t := range s.log {
		if opts.Matches(t) {
			matched = append(matched, entry{seq: i, t: *t})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b entry) int {
		c := a.t.Timestamp.Compare(b.t.Timestamp)
		if c == 0 {
			c = a.seq - b.seq
		}
		if opts.Order == transaction.OrderOldestFirst {
			return c
		}
		return -c
	})

	result := make([]*transaction.Transaction, len(matched))
	for i := range matched {
		result[i] = &matched[i].t
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Report Store ====================

func (s *Store) AccountTotals(_ context.Context) (report.Totals, error) {
	if err := s.ready(); err != nil {
		return report.Totals{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := report.Totals{Accounts: int64(len(s.balances))}
	for _, b := range s.balances {
		var ok bool
		if totals.Balance, ok = types.CheckedAdd(totals.Balance, b.Balance); !ok {
			return report.Totals{}, fmt.Errorf("accounting/memory: %w", report.ErrOverflow)
		}
	}
	return totals, nil
}

func (s *Store) ActiveSenders(_ context.Context, since time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := since.Unix()
	senders := make(map[string]struct{})
	for _, t := range s.log {
		if t.SenderID != transaction.SystemAccount && t.Unix() >= cutoff {
			senders[t.SenderID] = struct{}{}
		}
	}
	return int64(len(senders)), nil
}

func (s *Store) KindTotals(_ context.Context, start, end time.Time) ([]report.KindTotal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := start.Unix(), end.Unix()
	byKind := make(map[transaction.Kind]*report.KindTotal)
	for _, t := range s.log {
		ts := t.Unix()
		if ts < from || ts > to {
			continue
		}
		kt, ok := byKind[t.Kind]
		if !ok {
			kt = &report.KindTotal{Kind: t.Kind}
			byKind[t.Kind] = kt
		}
		kt.Count++
		if kt.Amount, ok = types.CheckedAdd(kt.Amount, t.Amount); !ok {
			return nil, fmt.Errorf("accounting/memory: %w", report.ErrOverflow)
		}
	}

	result := make([]report.KindTotal, 0, len(byKind))
	for _, k := range transaction.Kinds() {
		if kt, ok := byKind[k]; ok {
			result = append(result, *kt)
		}
	}
	return result, nil
}

// ==================== Helpers ====================

func paginate[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
