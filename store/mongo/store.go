package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/accounting"
	"github.com/xraph/accounting/account"
	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/report"
	accountingstore "github.com/xraph/accounting/store"
	"github.com/xraph/accounting/transaction"
	"github.com/xraph/accounting/types"
)

// Collection name constants.
const (
	colBalances     = "accounting_balances"
	colTransactions = "accounting_transactions"
)

// compile-time interface check
var _ accountingstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Transfers run in
// a multi-document transaction, which requires a replica set.
type Store struct {
	db     *grove.DB
	mdb    *mongodriver.MongoDB
	client *mongo.Client
}

// New creates a new MongoDB store. client must be connected to the same
// deployment as db; it is used to open transfer sessions.
func New(db *grove.DB, client *mongo.Client) *Store {
	return &Store{
		db:     db,
		mdb:    mongodriver.Unwrap(db),
		client: client,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all accounting collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("accounting/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Transfers ====================

func (s *Store) ApplyTransfer(ctx context.Context, t *transaction.Transaction, clock types.Clock) (*transaction.Transaction, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("accounting/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return s.applyInSession(ctx, t, clock)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && t.IdempotencyKey != "" {
			// A concurrent request with the same key committed first.
			prior, ferr := s.findByKey(ctx, t.IdempotencyKey)
			if ferr != nil {
				return nil, ferr
			}
			if prior != nil {
				return replayOf(prior, t)
			}
		}
		if errors.Is(err, accounting.ErrInsufficientBalance) || errors.Is(err, accounting.ErrInvalidTransfer) {
			return nil, err
		}
		return nil, fmt.Errorf("accounting/mongo: transfer: %w", err)
	}
	return res.(*transaction.Transaction), nil
}

// applyInSession may be re-run by the driver on transient transaction
// errors, so it derives everything from t.
func (s *Store) applyInSession(ctx context.Context, t *transaction.Transaction, clock types.Clock) (*transaction.Transaction, error) {
	prior, err := s.findByKey(ctx, t.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return replayOf(prior, t)
	}

	committed := *t
	committed.Timestamp = types.TruncateSecond(clock.Now())
	balances := s.mdb.Collection(colBalances)

	if committed.Debits() {
		res, err := balances.UpdateOne(ctx,
			bson.M{"_id": committed.SenderID, "balance": bson.M{"$gte": committed.Amount}},
			bson.M{
				"$inc": bson.M{"balance": -committed.Amount},
				"$set": bson.M{"updated_at": committed.Timestamp},
			},
		)
		if err != nil {
			return nil, fmt.Errorf("accounting/mongo: debit: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, accounting.ErrInsufficientBalance
		}
	}

	if committed.Credits() {
		var current balanceModel
		err := balances.FindOne(ctx, bson.M{"_id": committed.ReceiverID}).Decode(&current)
		if err != nil && !isNoDocuments(err) {
			return nil, fmt.Errorf("accounting/mongo: read receiver: %w", err)
		}
		if _, ok := types.CheckedAdd(current.Balance, committed.Amount); !ok {
			return nil, accounting.ErrAmountOverflow
		}

		_, err = balances.UpdateOne(ctx,
			bson.M{"_id": committed.ReceiverID},
			bson.M{
				"$inc": bson.M{"balance": committed.Amount},
				"$set": bson.M{"updated_at": committed.Timestamp},
			},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return nil, fmt.Errorf("accounting/mongo: credit: %w", err)
		}
	}

	if _, err := s.mdb.Collection(colTransactions).InsertOne(ctx, toTransactionModel(&committed)); err != nil {
		return nil, err
	}
	return &committed, nil
}

func (s *Store) findByKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	var m transactionModel
	err := s.mdb.Collection(colTransactions).FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("accounting/mongo: idempotency lookup: %w", err)
	}
	return fromTransactionModel(&m)
}

func replayOf(prior, t *transaction.Transaction) (*transaction.Transaction, error) {
	if !prior.SameRequest(t) {
		return nil, accounting.ErrIdempotencyConflict
	}
	return prior, nil
}

// ==================== Account Store ====================

func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("accounting/mongo: get balance: %w", err)
	}
	return m.Balance, nil
}

func (s *Store) ListBalances(ctx context.Context, opts account.ListOpts) ([]*account.Balance, error) {
	var models []balanceModel

	var conds bson.A
	if opts.IDContains != "" {
		conds = append(conds, bson.M{"_id": bson.M{"$regex": regexp.QuoteMeta(opts.IDContains)}})
	}
	if opts.IDExcludes != "" {
		conds = append(conds, bson.M{"_id": bson.M{"$not": bson.Regex{Pattern: regexp.QuoteMeta(opts.IDExcludes)}}})
	}
	filter := bson.M{}
	if len(conds) > 0 {
		filter["$and"] = conds
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(balanceSort(opts.Order))

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("accounting/mongo: list balances: %w", err)
	}

	result := make([]*account.Balance, len(models))
	for i := range models {
		result[i] = fromBalanceModel(&models[i])
	}
	return result, nil
}

func (s *Store) Counterparties(ctx context.Context, accountID string) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"receiver_id": accountID,
			"sender_id":   bson.M{"$ne": transaction.SystemAccount},
		}},
		bson.M{"$group": bson.M{"_id": "$sender_id"}},
		bson.M{"$count": "n"},
	}
	return s.count(ctx, pipeline)
}

// ==================== Transaction Store ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": txnID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, accounting.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("accounting/mongo: get transaction: %w", err)
	}
	return fromTransactionModel(&m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel

	filter := bson.M{}
	if opts.AccountID != "" {
		filter["$or"] = bson.A{
			bson.M{"sender_id": opts.AccountID},
			bson.M{"receiver_id": opts.AccountID},
		}
	}
	if len(opts.Kinds) > 0 {
		kinds := make(bson.A, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = int32(k)
		}
		filter["kind"] = bson.M{"$in": kinds}
	}
	if window := timeRange(opts.Start, opts.End); len(window) > 0 {
		filter["created_at"] = window
	}

	// TypeIDs are time-ordered, so _id breaks ties inside one second.
	dir := -1
	if opts.Order == transaction.OrderOldestFirst {
		dir = 1
	}
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("accounting/mongo: list transactions: %w", err)
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
	pipeline := bson.A{
		bson.M{"$group": bson.M{
			"_id":   nil,
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$balance"},
		}},
	}

	cursor, err := s.mdb.Collection(colBalances).Aggregate(ctx, pipeline)
	if err != nil {
		return report.Totals{}, fmt.Errorf("accounting/mongo: aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Count int64 `bson:"count"`
		Total any   `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return report.Totals{}, fmt.Errorf("accounting/mongo: aggregate decode: %w", err)
	}
	if len(results) == 0 {
		return report.Totals{}, nil
	}

	total, err := asInt64(results[0].Total)
	if err != nil {
		return report.Totals{}, err
	}
	return report.Totals{Accounts: results[0].Count, Balance: total}, nil
}

func (s *Store) ActiveSenders(ctx context.Context, since time.Time) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"sender_id":  bson.M{"$ne": transaction.SystemAccount},
			"created_at": bson.M{"$gte": types.TruncateSecond(since)},
		}},
		bson.M{"$group": bson.M{"_id": "$sender_id"}},
		bson.M{"$count": "n"},
	}
	return s.count(ctx, pipeline)
}

func (s *Store) KindTotals(ctx context.Context, start, end time.Time) ([]report.KindTotal, error) {
	match := bson.M{}
	if window := timeRange(start, end); len(window) > 0 {
		match["created_at"] = window
	}
	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{"$group": bson.M{
			"_id":   "$kind",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}},
		bson.M{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("accounting/mongo: aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Kind  int32 `bson:"_id"`
		Count int64 `bson:"count"`
		Total any   `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("accounting/mongo: aggregate decode: %w", err)
	}

	out := make([]report.KindTotal, 0, len(results))
	for _, r := range results {
		amount, err := asInt64(r.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, report.KindTotal{
			Kind:   transaction.Kind(r.Kind),
			Count:  r.Count,
			Amount: amount,
		})
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, pipeline bson.A) (int64, error) {
	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("accounting/mongo: aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		N int64 `bson:"n"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("accounting/mongo: aggregate decode: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].N, nil
}

// ==================== Helpers ====================

func balanceSort(o account.Order) bson.D {
	switch o {
	case account.OrderBalanceAsc:
		return bson.D{{Key: "balance", Value: 1}, {Key: "_id", Value: 1}}
	case account.OrderAccountID:
		return bson.D{{Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "balance", Value: -1}, {Key: "_id", Value: 1}}
	}
}

// timeRange builds an inclusive created_at filter. Zero bounds are open.
func timeRange(start, end time.Time) bson.M {
	r := bson.M{}
	if !start.IsZero() {
		r["$gte"] = types.TruncateSecond(start)
	}
	if !end.IsZero() {
		r["$lte"] = types.TruncateSecond(end)
	}
	return r
}

// asInt64 decodes a $sum result. MongoDB widens an overflowing long sum to
// a double.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("accounting/mongo: %w", report.ErrOverflow)
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all accounting collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colBalances: {
			{Keys: bson.D{{Key: "balance", Value: -1}, {Key: "_id", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	}
}
