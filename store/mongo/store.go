package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	clawback "github.com/xraph/clawback"
	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/refund"
	clawbackstore "github.com/xraph/clawback/store"
	"github.com/xraph/clawback/types"
)

// Collection name constants.
const (
	colLedgers    = "clawback_ledgers"
	colDailySpend = "clawback_daily_spend"
	colDeposits   = "clawback_deposits"
	colRefunds    = "clawback_refunds"
	colGrants     = "clawback_grants"
)

// compile-time interface check
var _ clawbackstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all clawback collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("clawback/mongo: migrate %s indexes: %w", col, err)
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

// ==================== Ledger Store ====================

func (s *Store) GetLedger(ctx context.Context, creatorID string) (*ledger.CreatorLedger, error) {
	var m ledgerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": creatorID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, clawback.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("clawback/mongo: get ledger: %w", err)
	}
	return fromLedgerModel(&m), nil
}

func (s *Store) UpsertLedger(ctx context.Context, l *ledger.CreatorLedger) error {
	m := toLedgerModel(l)
	t := now()

	// Settings only: the balance field is owned by Credit/Debit.
	_, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{"_id": m.CreatorID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"daily_limit":     m.DailyLimit,
				"refunds_enabled": m.RefundsEnabled,
				"wallet_provider": m.WalletProvider,
				"updated_at":      t,
			},
			"$setOnInsert": bson.M{
				"balance":    int64(0),
				"currency":   m.Currency,
				"created_at": t,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clawback/mongo: upsert ledger: %w", err)
	}
	return nil
}

func (s *Store) Credit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error) {
	t := now()

	// A single atomic $inc is the serialization point for concurrent
	// credits against one creator.
	_, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{"_id": creatorID}).
		SetUpdate(bson.M{
			"$inc": bson.M{"balance": amount.Amount},
			"$set": bson.M{"updated_at": t},
			"$setOnInsert": bson.M{
				"daily_limit":     int64(0),
				"currency":        amount.Currency,
				"refunds_enabled": false,
				"wallet_provider": "",
				"created_at":      t,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("clawback/mongo: credit ledger: %w", err)
	}
	return s.balance(ctx, creatorID, amount.Currency)
}

func (s *Store) Debit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error) {
	res, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{
			"_id":     creatorID,
			"balance": bson.M{"$gte": amount.Amount},
		}).
		SetUpdate(bson.M{
			"$inc": bson.M{"balance": -amount.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("clawback/mongo: debit ledger: %w", err)
	}
	if res.MatchedCount() == 0 {
		// Guarded update matched nothing: either no ledger document, or
		// the balance check failed.
		if _, lerr := s.GetLedger(ctx, creatorID); lerr != nil {
			return types.Money{}, lerr
		}
		return types.Money{}, clawback.ErrInsufficientBalance
	}
	return s.balance(ctx, creatorID, amount.Currency)
}

func (s *Store) balance(ctx context.Context, creatorID, currency string) (types.Money, error) {
	var m ledgerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": creatorID}).
		Scan(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("clawback/mongo: read balance: %w", err)
	}
	return types.Money{Amount: m.Balance, Currency: currency}, nil
}

func (s *Store) SpentToday(ctx context.Context, creatorID string, day ledger.Day) (types.Money, error) {
	var m dailySpendModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": spendKey(creatorID, day)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.USD(0), nil
		}
		return types.Money{}, fmt.Errorf("clawback/mongo: spent today: %w", err)
	}
	return types.Money{Amount: m.Total, Currency: m.Currency}, nil
}

func (s *Store) AddSpentToday(ctx context.Context, creatorID string, day ledger.Day, amount types.Money) (types.Money, error) {
	key := spendKey(creatorID, day)
	t := now()

	_, err := s.mdb.NewUpdate((*dailySpendModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{
			"$inc": bson.M{"total": amount.Amount},
			"$set": bson.M{"updated_at": t},
			"$setOnInsert": bson.M{
				"creator_id": creatorID,
				"day":        day.String(),
				"currency":   amount.Currency,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("clawback/mongo: add spent today: %w", err)
	}

	var m dailySpendModel
	err = s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key}).
		Scan(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("clawback/mongo: read spent today: %w", err)
	}
	return types.Money{Amount: m.Total, Currency: amount.Currency}, nil
}

// ==================== Deposit Store ====================

func (s *Store) CreateDeposit(ctx context.Context, d *deposit.Deposit) error {
	m := toDepositModel(d)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		// The unique index on external_tx_ref is the dedup source of truth.
		if mongo.IsDuplicateKeyError(err) {
			return clawback.ErrDuplicateDeposit
		}
		return fmt.Errorf("clawback/mongo: create deposit: %w", err)
	}
	return nil
}

func (s *Store) GetDepositByRef(ctx context.Context, externalTxRef string) (*deposit.Deposit, error) {
	var m depositModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"external_tx_ref": externalTxRef}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, clawback.ErrDepositNotFound
		}
		return nil, fmt.Errorf("clawback/mongo: get deposit by ref: %w", err)
	}
	return fromDepositModel(&m)
}

func (s *Store) ListDeposits(ctx context.Context, creatorID string, opts deposit.ListOpts) ([]*deposit.Deposit, error) {
	var models []depositModel

	filter := bson.M{"creator_id": creatorID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("clawback/mongo: list deposits: %w", err)
	}

	result := make([]*deposit.Deposit, len(models))
	for i := range models {
		d, err := fromDepositModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

// ==================== Refund Store ====================

func (s *Store) CreateRefund(ctx context.Context, r *refund.Refund) error {
	m := toRefundModel(r)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("clawback/mongo: create refund: %w", err)
	}
	return nil
}

func (s *Store) GetRefund(ctx context.Context, refundID id.RefundID) (*refund.Refund, error) {
	var m refundModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": refundID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, clawback.ErrRefundNotFound
		}
		return nil, fmt.Errorf("clawback/mongo: get refund: %w", err)
	}
	return fromRefundModel(&m)
}

func (s *Store) GetActiveRefundByRef(ctx context.Context, originalTxRef string) (*refund.Refund, error) {
	var m refundModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"original_tx_ref": originalTxRef,
			"status":          bson.M{"$in": []string{string(refund.StatusProcessing), string(refund.StatusCompleted)}},
		}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, clawback.ErrRefundNotFound
		}
		return nil, fmt.Errorf("clawback/mongo: get active refund by ref: %w", err)
	}
	return fromRefundModel(&m)
}

func (s *Store) UpdateRefund(ctx context.Context, r *refund.Refund) error {
	m := toRefundModel(r)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clawback/mongo: update refund: %w", err)
	}
	if res.MatchedCount() == 0 {
		return clawback.ErrRefundNotFound
	}
	return nil
}

func (s *Store) ListRefunds(ctx context.Context, creatorID string, opts refund.ListOpts) ([]*refund.Refund, error) {
	var models []refundModel

	filter := bson.M{"creator_id": creatorID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("clawback/mongo: list refunds: %w", err)
	}

	result := make([]*refund.Refund, len(models))
	for i := range models {
		r, err := fromRefundModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Entitlement Store ====================

func (s *Store) CreateGrant(ctx context.Context, g *entitlement.Grant) error {
	m := toGrantModel(g)

	// Replace semantics on the natural key: a fresh grant for the same
	// (kind, subject, buyer) supersedes the old one.
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.GrantKey}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":          m.GrantKey,
			"id":           m.ID,
			"kind":         m.Kind,
			"subject_id":   m.SubjectID,
			"buyer":        m.Buyer,
			"active_until": m.ActiveUntil,
			"created_at":   m.CreatedAt,
			"updated_at":   m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clawback/mongo: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) (*entitlement.Grant, error) {
	var m grantModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": grantKey(kind, subjectID, buyer)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, clawback.ErrGrantNotFound
		}
		return nil, fmt.Errorf("clawback/mongo: get grant: %w", err)
	}
	return fromGrantModel(&m)
}

func (s *Store) RevokeGrant(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) error {
	_, err := s.mdb.NewDelete((*grantModel)(nil)).
		Filter(bson.M{"_id": grantKey(kind, subjectID, buyer)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clawback/mongo: revoke grant: %w", err)
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, buyer string, opts entitlement.ListOpts) ([]*entitlement.Grant, error) {
	var models []grantModel

	filter := bson.M{"buyer": buyer}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("clawback/mongo: list grants: %w", err)
	}

	result := make([]*entitlement.Grant, len(models))
	for i := range models {
		g, err := fromGrantModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = g
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all clawback collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLedgers: {},
		colDailySpend: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "day", Value: 1}}},
		},
		colDeposits: {
			{
				Keys:    bson.D{{Key: "external_tx_ref", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colRefunds: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "original_tx_ref", Value: 1}, {Key: "status", Value: 1}}},
		},
		colGrants: {
			{Keys: bson.D{{Key: "buyer", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
