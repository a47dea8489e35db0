package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the postgres migration executor
	"github.com/xraph/grove/migrate"

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

const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL. Schema management and
// model reads go through Grove ORM; the transfer path runs on a pgx pool so
// the balance row locks, both balance writes and the log insert share one
// database transaction.
type Store struct {
	db   *grove.DB
	pg   *pgdriver.PgDB
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store. db and pool must point at the same
// database.
func New(db *grove.DB, pool *pgxpool.Pool) *Store {
	return &Store{
		db:   db,
		pg:   pgdriver.Unwrap(db),
		pool: pool,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("accounting/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("accounting/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	return s.pool.Ping(ctx)
}

// Close closes the pool and the database connection.
func (s *Store) Close() error {
	s.pool.Close()
	return s.db.Close()
}

// ==================== Transfers ====================

func (s *Store) ApplyTransfer(ctx context.Context, t *transaction.Transaction, clock types.Clock) (*transaction.Transaction, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("accounting/postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	balance, err := lockAccounts(ctx, tx, t)
	if err != nil {
		return nil, err
	}

	// Replays are detected while the balance rows are locked.
	prior, err := s.findByKey(ctx, tx, t.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return replayOf(prior, t)
	}

	if t.Debits() && balance < t.Amount {
		return nil, accounting.ErrInsufficientBalance
	}

	committed := *t
	committed.Timestamp = types.TruncateSecond(clock.Now())

	if committed.Debits() {
		if _, err := tx.Exec(ctx,
			`UPDATE accounting_balances SET balance = balance - $1, updated_at = $2 WHERE account_id = $3`,
			committed.Amount, committed.Timestamp, committed.SenderID,
		); err != nil {
			return nil, fmt.Errorf("accounting/postgres: debit: %w", err)
		}
	}

	if committed.Credits() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO accounting_balances (account_id, balance, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_id) DO UPDATE
			SET balance = accounting_balances.balance + EXCLUDED.balance,
			    updated_at = EXCLUDED.updated_at`,
			committed.ReceiverID, committed.Amount, committed.Timestamp,
		); err != nil {
			if isNumericOverflow(err) {
				return nil, accounting.ErrAmountOverflow
			}
			return nil, fmt.Errorf("accounting/postgres: credit: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO accounting_transactions
			(id, sender_id, receiver_id, amount, kind, description, created_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		committed.ID.String(), committed.SenderID, committed.ReceiverID, committed.Amount,
		int16(committed.Kind), committed.Description, committed.Timestamp, nullableKey(committed.IdempotencyKey),
	); err != nil {
		if isUniqueViolation(err) && committed.IdempotencyKey != "" {
			// A concurrent request with the same key committed first.
			_ = tx.Rollback(ctx) //nolint:errcheck // the transaction is already aborted
			return s.replayKey(ctx, t)
		}
		return nil, fmt.Errorf("accounting/postgres: append: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("accounting/postgres: commit: %w", err)
	}
	return &committed, nil
}

// lockIDs returns the balance rows a transfer touches, sorted and without
// the system account.
func lockIDs(t *transaction.Transaction) []string {
	ids := make([]string, 0, 2)
	if t.Debits() {
		ids = append(ids, t.SenderID)
	}
	if t.Credits() {
		ids = append(ids, t.ReceiverID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// lockAccounts row-locks the existing balance rows of both parties in
// account_id order and returns the sender balance. The fixed order keeps
// two transfers that swap sender and receiver from deadlocking on the
// credit upsert.
func lockAccounts(ctx context.Context, tx pgx.Tx, t *transaction.Transaction) (int64, error) {
	ids := lockIDs(t)

	rows, err := tx.Query(ctx, `
		SELECT account_id, balance FROM accounting_balances
		WHERE account_id = ANY($1)
		ORDER BY account_id
		FOR UPDATE`, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("accounting/postgres: lock accounts: %w", err)
	}
	defer rows.Close()

	var sender int64
	for rows.Next() {
		var (
			accountID string
			balance   int64
		)
		if err := rows.Scan(&accountID, &balance); err != nil {
			return 0, fmt.Errorf("accounting/postgres: lock accounts: %w", err)
		}
		if t.Debits() && accountID == t.SenderID {
			sender = balance
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("accounting/postgres: lock accounts: %w", err)
	}
	return sender, nil
}

func (s *Store) findByKey(ctx context.Context, tx pgx.Tx, key string) (*transaction.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	var (
		m       transactionModel
		keyCopy string
	)
	err := tx.QueryRow(ctx, `
		SELECT id, seq, sender_id, receiver_id, amount, kind, description, created_at, idempotency_key
		FROM accounting_transactions WHERE idempotency_key = $1`, key,
	).Scan(&m.ID, &m.Seq, &m.SenderID, &m.ReceiverID, &m.Amount, &m.Kind, &m.Description, &m.CreatedAt, &keyCopy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("accounting/postgres: idempotency lookup: %w", err)
	}
	m.IdempotencyKey = &keyCopy
	return fromTransactionModel(&m)
}

func (s *Store) replayKey(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("idempotency_key = $1", t.IdempotencyKey).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("accounting/postgres: idempotency replay: %w", err)
	}
	prior, err := fromTransactionModel(m)
	if err != nil {
		return nil, err
	}
	return replayOf(prior, t)
}

func replayOf(prior, t *transaction.Transaction) (*transaction.Transaction, error) {
	if !prior.SameRequest(t) {
		return nil, accounting.ErrIdempotencyConflict
	}
	return prior, nil
}

// ==================== Account Store ====================

func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("account_id = $1", accountID).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.IDContains != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("strpos(account_id, $%d) > 0", argIdx), opts.IDContains)
	}
	if opts.IDExcludes != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("strpos(account_id, $%d) = 0", argIdx), opts.IDExcludes)
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
	err := s.pg.NewRaw(`
		SELECT COUNT(DISTINCT sender_id) FROM accounting_transactions
		WHERE receiver_id = $1 AND sender_id <> $2
	`, accountID, transaction.SystemAccount).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ==================== Transaction Store ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", txnID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.AccountID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("(sender_id = $%d OR receiver_id = $%d)", argIdx, argIdx), opts.AccountID)
	}
	if len(opts.Kinds) > 0 {
		argIdx++
		kinds := make([]int16, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = int16(k)
		}
		q = q.Where(fmt.Sprintf("kind = ANY($%d)", argIdx), kinds)
	}
	if !opts.Start.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), types.TruncateSecond(opts.Start))
	}
	if !opts.End.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at <= $%d", argIdx), types.TruncateSecond(opts.End))
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

// Sums are computed as NUMERIC and range-checked by parseTotal.

func (s *Store) AccountTotals(ctx context.Context) (report.Totals, error) {
	var (
		count int64
		total string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(balance::NUMERIC), 0)::TEXT FROM accounting_balances`,
	).Scan(&count, &total)
	if err != nil {
		return report.Totals{}, err
	}
	balance, err := parseTotal(total)
	if err != nil {
		return report.Totals{}, err
	}
	return report.Totals{Accounts: count, Balance: balance}, nil
}

func (s *Store) ActiveSenders(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pg.NewRaw(`
		SELECT COUNT(DISTINCT sender_id) FROM accounting_transactions
		WHERE sender_id <> $1 AND created_at >= $2
	`, transaction.SystemAccount, types.TruncateSecond(since)).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) KindTotals(ctx context.Context, start, end time.Time) ([]report.KindTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, COUNT(*), SUM(amount::NUMERIC)::TEXT
		FROM accounting_transactions
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY kind
		ORDER BY kind`,
		types.TruncateSecond(start), types.TruncateSecond(end),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []report.KindTotal
	for rows.Next() {
		var (
			kind  int16
			count int64
			total string
		)
		if err := rows.Scan(&kind, &count, &total); err != nil {
			return nil, err
		}
		amount, err := parseTotal(total)
		if err != nil {
			return nil, err
		}
		result = append(result, report.KindTotal{
			Kind:   transaction.Kind(kind),
			Count:  count,
			Amount: amount,
		})
	}
	return result, rows.Err()
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

// parseTotal converts a NUMERIC aggregate rendered as text to int64.
func parseTotal(v string) (int64, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return 0, fmt.Errorf("accounting/postgres: malformed total %q", v)
	}
	if !n.IsInt64() {
		return 0, report.ErrOverflow
	}
	return n.Int64(), nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isNumericOverflow matches "bigint out of range" (22003).
func isNumericOverflow(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22003"
}
