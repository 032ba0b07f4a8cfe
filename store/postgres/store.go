package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	clawback "github.com/xraph/clawback"
	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/refund"
	clawbackstore "github.com/xraph/clawback/store"
	"github.com/xraph/clawback/types"
)

// compile-time interface check
var _ clawbackstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("clawback/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("clawback/postgres: migration failed: %w", err)
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
	m := new(ledgerModel)
	err := s.pg.NewSelect(m).
		Where("creator_id = $1", creatorID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, clawback.ErrLedgerNotFound
		}
		return nil, err
	}
	return fromLedgerModel(m), nil
}

func (s *Store) UpsertLedger(ctx context.Context, l *ledger.CreatorLedger) error {
	m := toLedgerModel(l)
	m.UpdatedAt = now()
	// Settings only: the balance column is owned by Credit/Debit.
	_, err := s.pg.NewInsert(m).
		OnConflict("(creator_id) DO UPDATE").
		Set("daily_limit = EXCLUDED.daily_limit").
		Set("refunds_enabled = EXCLUDED.refunds_enabled").
		Set("wallet_provider = EXCLUDED.wallet_provider").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) Credit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error) {
	t := now()
	m := &ledgerModel{
		CreatorID: creatorID,
		Balance:   amount.Amount,
		Currency:  amount.Currency,
		CreatedAt: t,
		UpdatedAt: t,
	}
	// The single guarded statement is the serialization point: concurrent
	// credits for one creator stack up on the row, never on a stale read.
	_, err := s.pg.NewInsert(m).
		OnConflict("(creator_id) DO UPDATE").
		Set("balance = clawback_ledgers.balance + EXCLUDED.balance").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return types.Money{}, err
	}
	return s.balance(ctx, creatorID, amount.Currency)
}

func (s *Store) Debit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error) {
	res, err := s.pg.NewUpdate((*ledgerModel)(nil)).
		Set("balance = balance - $1", amount.Amount).
		Set("updated_at = $2", now()).
		Where("creator_id = $3", creatorID).
		Where("balance >= $4", amount.Amount).
		Exec(ctx)
	if err != nil {
		return types.Money{}, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return types.Money{}, err
	}
	if rows == 0 {
		// Guarded update matched nothing: either no ledger row, or the
		// balance check failed.
		if _, lerr := s.GetLedger(ctx, creatorID); lerr != nil {
			return types.Money{}, lerr
		}
		return types.Money{}, clawback.ErrInsufficientBalance
	}
	return s.balance(ctx, creatorID, amount.Currency)
}

func (s *Store) balance(ctx context.Context, creatorID, currency string) (types.Money, error) {
	var balance int64
	err := s.pg.NewRaw(`
		SELECT balance FROM clawback_ledgers WHERE creator_id = $1
	`, creatorID).Scan(ctx, &balance)
	if err != nil {
		return types.Money{}, err
	}
	return types.Money{Amount: balance, Currency: currency}, nil
}

func (s *Store) SpentToday(ctx context.Context, creatorID string, day ledger.Day) (types.Money, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(total), 0) FROM clawback_daily_spend
		WHERE creator_id = $1 AND day = $2
	`, creatorID, day.String()).Scan(ctx, &total)
	if err != nil {
		return types.Money{}, err
	}
	return types.USD(total), nil
}

func (s *Store) AddSpentToday(ctx context.Context, creatorID string, day ledger.Day, amount types.Money) (types.Money, error) {
	m := &dailySpendModel{
		CreatorID: creatorID,
		Day:       day.String(),
		Total:     amount.Amount,
		Currency:  amount.Currency,
		UpdatedAt: now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(creator_id, day) DO UPDATE").
		Set("total = clawback_daily_spend.total + EXCLUDED.total").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return types.Money{}, err
	}

	var total int64
	err = s.pg.NewRaw(`
		SELECT total FROM clawback_daily_spend WHERE creator_id = $1 AND day = $2
	`, creatorID, day.String()).Scan(ctx, &total)
	if err != nil {
		return types.Money{}, err
	}
	return types.Money{Amount: total, Currency: amount.Currency}, nil
}

// ==================== Deposit Store ====================

func (s *Store) CreateDeposit(ctx context.Context, d *deposit.Deposit) error {
	m := toDepositModel(d)
	res, err := s.pg.NewInsert(m).
		OnConflict("(external_tx_ref) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return clawback.ErrDuplicateDeposit
	}
	return nil
}

func (s *Store) GetDepositByRef(ctx context.Context, externalTxRef string) (*deposit.Deposit, error) {
	m := new(depositModel)
	err := s.pg.NewSelect(m).
		Where("external_tx_ref = $1", externalTxRef).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, clawback.ErrDepositNotFound
		}
		return nil, err
	}
	return fromDepositModel(m)
}

func (s *Store) ListDeposits(ctx context.Context, creatorID string, opts deposit.ListOpts) ([]*deposit.Deposit, error) {
	var models []depositModel
	q := s.pg.NewSelect(&models).Where("creator_id = $1", creatorID)

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRefund(ctx context.Context, refundID id.RefundID) (*refund.Refund, error) {
	m := new(refundModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", refundID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, clawback.ErrRefundNotFound
		}
		return nil, err
	}
	return fromRefundModel(m)
}

func (s *Store) GetActiveRefundByRef(ctx context.Context, originalTxRef string) (*refund.Refund, error) {
	m := new(refundModel)
	err := s.pg.NewSelect(m).
		Where("original_tx_ref = $1", originalTxRef).
		Where("status IN ('processing', 'completed')").
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, clawback.ErrRefundNotFound
		}
		return nil, err
	}
	return fromRefundModel(m)
}

func (s *Store) UpdateRefund(ctx context.Context, r *refund.Refund) error {
	m := toRefundModel(r)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return clawback.ErrRefundNotFound
	}
	return nil
}

func (s *Store) ListRefunds(ctx context.Context, creatorID string, opts refund.ListOpts) ([]*refund.Refund, error) {
	var models []refundModel
	q := s.pg.NewSelect(&models).Where("creator_id = $1", creatorID)

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(kind, subject_id, buyer) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("active_until = EXCLUDED.active_until").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetGrant(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) (*entitlement.Grant, error) {
	m := new(grantModel)
	err := s.pg.NewSelect(m).
		Where("kind = $1", string(kind)).
		Where("subject_id = $2", subjectID).
		Where("buyer = $3", buyer).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, clawback.ErrGrantNotFound
		}
		return nil, err
	}
	return fromGrantModel(m)
}

func (s *Store) RevokeGrant(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) error {
	_, err := s.pg.NewDelete((*grantModel)(nil)).
		Where("kind = $1", string(kind)).
		Where("subject_id = $2", subjectID).
		Where("buyer = $3", buyer).
		Exec(ctx)
	return err
}

func (s *Store) ListGrants(ctx context.Context, buyer string, opts entitlement.ListOpts) ([]*entitlement.Grant, error) {
	var models []grantModel
	q := s.pg.NewSelect(&models).Where("buyer = $1", buyer)

	argIdx := 1
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

func now() time.Time {
	return time.Now().UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
