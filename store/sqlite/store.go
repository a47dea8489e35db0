package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

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

// DefaultBusyTimeout is how long a writer waits for the database lock.
const DefaultBusyTimeout = 5 * time.Second

// Open opens a database/sql handle on path with the settings the transfer
// path relies on: write transactions start with BEGIN IMMEDIATE, the
// journal is WAL, and lock waits are bounded by DefaultBusyTimeout.
func Open(path string) (*sql.DB, error) {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", DefaultBusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("accounting/sqlite: open %s: %w", path, err)
	}
	return db, nil
}

// Store implements store.Store using SQLite. Reads and migrations go through
// Grove ORM; transfers run in an IMMEDIATE transaction on conn, which holds
// the database write lock from the balance check to the commit.
type Store struct {
	db   *grove.DB
	sdb  *sqlitedriver.SqliteDB
	conn *sql.DB
}

// New creates a new SQLite store. conn should come from Open on the same
// file as db.
func New(db *grove.DB, conn *sql.DB) *Store {
	return &Store{
		db:   db,
		sdb:  sqlitedriver.Unwrap(db),
		conn: conn,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("accounting/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("accounting/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	return s.conn.PingContext(ctx)
}

// Close closes both database handles.
func (s *Store) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

// ==================== Transfers ====================

func (s *Store) ApplyTransfer(ctx context.Context, t *transaction.Transaction, clock types.Clock) (*transaction.Transaction, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("accounting/sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	prior, err := findByKey(ctx, tx, t.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if !prior.SameRequest(t) {
			return nil, accounting.ErrIdempotencyConflict
		}
		return prior, nil
	}

	if t.Debits() {
		balance, err := balanceIn(ctx, tx, t.SenderID)
		if err != nil {
			return nil, fmt.Errorf("accounting/sqlite: read sender: %w", err)
		}
		if balance < t.Amount {
			return nil, accounting.ErrInsufficientBalance
		}
	}

	// SQLite promotes overflowing integer arithmetic to REAL, so the credit
	// is range-checked before the upsert.
	if t.Credits() {
		current, err := balanceIn(ctx, tx, t.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("accounting/sqlite: read receiver: %w", err)
		}
		if _, ok := types.CheckedAdd(current, t.Amount); !ok {
			return nil, accounting.ErrAmountOverflow
		}
	}

	committed := *t
	committed.Timestamp = types.TruncateSecond(clock.Now())
	unix := committed.Unix()

	if committed.Debits() {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounting_balances SET balance = balance - ?, updated_at = ? WHERE account_id = ?`,
			committed.Amount, unix, committed.SenderID,
		); err != nil {
			return nil, fmt.Errorf("accounting/sqlite: debit: %w", err)
		}
	}

	if committed.Credits() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounting_balances (account_id, balance, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (account_id) DO UPDATE
			SET balance = accounting_balances.balance + excluded.balance,
			    updated_at = excluded.updated_at`,
			committed.ReceiverID, committed.Amount, unix,
		); err != nil {
			return nil, fmt.Errorf("accounting/sqlite: credit: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounting_transactions
			(id, sender_id, receiver_id, amount, kind, description, created_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		committed.ID.String(), committed.SenderID, committed.ReceiverID, committed.Amount,
		int64(committed.Kind), committed.Description, unix, nullableKey(committed.IdempotencyKey),
	); err != nil {
		return nil, fmt.Errorf("accounting/sqlite: append: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("accounting/sqlite: commit: %w", err)
	}
	return &committed, nil
}

func balanceIn(ctx context.Context, tx *sql.Tx, accountID string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounting_balances WHERE account_id = ?`, accountID,
	).Scan(&balance)
	if isNoRows(err) {
		return 0, nil
	}
	return balance, err
}

func findByKey(ctx context.Context, tx *sql.Tx, key string) (*transaction.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	var m transactionModel
	err := tx.QueryRowContext(ctx, `
		SELECT seq, id, sender_id, receiver_id, amount, kind, description, created_at, idempotency_key
		FROM accounting_transactions WHERE idempotency_key = ?`, key,
	).Scan(&m.Seq, &m.ID, &m.SenderID, &m.ReceiverID, &m.Amount, &m.Kind, &m.Description, &m.CreatedAt, &m.IdempotencyKey)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("accounting/sqlite: idempotency lookup: %w", err)
	}
	return fromTransactionModel(&m)
}

// ==================== Account Store ====================

func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.Balance, nil
}

func (s *Store) ListBalances(ctx context.Context, opts account.ListOpts) ([]*account.Balance, error) {
	var models []balanceModel
	q := s.sdb.NewSelect(&models)

	if opts.IDContains != "" {
		q = q.Where("instr(account_id, ?) > 0", opts.IDContains)
	}
	if opts.IDExcludes != "" {
		q = q.Where("instr(account_id, ?) = 0", opts.IDExcludes)
	}
	q = q.OrderExpr(balanceOrder(opts.Order))
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*account.Balance, len(models))
	for i := range models {
		result[i] = fromBalanceModel(&models[i])
	}
	return result, nil
}

func (s *Store) Counterparties(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(DISTINCT sender_id) FROM accounting_transactions
		WHERE receiver_id = ? AND sender_id <> ?
	`, accountID, transaction.SystemAccount).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ==================== Transaction Store ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	m := new(transactionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", txnID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, accounting.ErrTransactionNotFound
		}
		return nil, err
	}
	return fromTransactionModel(m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.sdb.NewSelect(&models)

	if opts.AccountID != "" {
		q = q.Where("(sender_id = ? OR receiver_id = ?)", opts.AccountID, opts.AccountID)
	}
	if len(opts.Kinds) > 0 {
		marks := make([]string, len(opts.Kinds))
		args := make([]any, len(opts.Kinds))
		for i, k := range opts.Kinds {
			marks[i] = "?"
			args[i] = int64(k)
		}
		q = q.Where("kind IN ("+strings.Join(marks, ", ")+")", args...)
	}
	if !opts.Start.IsZero() {
		q = q.Where("created_at >= ?", opts.Start.Unix())
	}
	if !opts.End.IsZero() {
		q = q.Where("created_at <= ?", opts.End.Unix())
	}
	if opts.Order == transaction.OrderOldestFirst {
		q = q.OrderExpr("created_at ASC, seq ASC")
	} else {
		q = q.OrderExpr("created_at DESC, seq DESC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Report Store ====================

func (s *Store) AccountTotals(ctx context.Context) (report.Totals, error) {
	var totals report.Totals
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM accounting_balances`,
	).Scan(&totals.Accounts, &totals.Balance)
	if err != nil {
		return report.Totals{}, aggregateError(err)
	}
	return totals, nil
}

func (s *Store) ActiveSenders(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(DISTINCT sender_id) FROM accounting_transactions
		WHERE sender_id <> ? AND created_at >= ?
	`, transaction.SystemAccount, since.Unix()).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) KindTotals(ctx context.Context, start, end time.Time) ([]report.KindTotal, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT kind, COUNT(*), SUM(amount)
		FROM accounting_transactions
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY kind
		ORDER BY kind`,
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, aggregateError(err)
	}
	defer rows.Close()

	var result []report.KindTotal
	for rows.Next() {
		var (
			kind int64
			kt   report.KindTotal
		)
		if err := rows.Scan(&kind, &kt.Count, &kt.Amount); err != nil {
			return nil, aggregateError(err)
		}
		kt.Kind = transaction.Kind(kind)
		result = append(result, kt)
	}
	if err := rows.Err(); err != nil {
		return nil, aggregateError(err)
	}
	return result, nil
}

// ==================== Helpers ====================

func balanceOrder(o account.Order) string {
	switch o {
	case account.OrderBalanceAsc:
		return "balance ASC, account_id ASC"
	case account.OrderAccountID:
		return "account_id ASC"
	default:
		return "balance DESC, account_id ASC"
	}
}

// aggregateError maps SQLite's SUM overflow to report.ErrOverflow.
func aggregateError(err error) error {
	if strings.Contains(err.Error(), "integer overflow") {
		return fmt.Errorf("accounting/sqlite: %w", report.ErrOverflow)
	}
	return err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
