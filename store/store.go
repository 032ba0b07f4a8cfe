package store

import (
	"context"

	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/refund"
	"github.com/xraph/clawback/types"
)

// Store is the unified storage interface for all Clawback entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// The ledger and entitlement records are independent aggregates: no
// implementation provides a transaction spanning both, and the engine is
// the only component allowed to coordinate a change across them.
type Store interface {
	// Ledger methods
	GetLedger(ctx context.Context, creatorID string) (*ledger.CreatorLedger, error)
	UpsertLedger(ctx context.Context, l *ledger.CreatorLedger) error
	Credit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error)
	Debit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error)
	SpentToday(ctx context.Context, creatorID string, day ledger.Day) (types.Money, error)
	AddSpentToday(ctx context.Context, creatorID string, day ledger.Day, amount types.Money) (types.Money, error)

	// Deposit methods
	CreateDeposit(ctx context.Context, d *deposit.Deposit) error
	GetDepositByRef(ctx context.Context, externalTxRef string) (*deposit.Deposit, error)
	ListDeposits(ctx context.Context, creatorID string, opts deposit.ListOpts) ([]*deposit.Deposit, error)

	// Refund methods
	CreateRefund(ctx context.Context, r *refund.Refund) error
	GetRefund(ctx context.Context, refundID id.RefundID) (*refund.Refund, error)
	GetActiveRefundByRef(ctx context.Context, originalTxRef string) (*refund.Refund, error)
	UpdateRefund(ctx context.Context, r *refund.Refund) error
	ListRefunds(ctx context.Context, creatorID string, opts refund.ListOpts) ([]*refund.Refund, error)

	// Entitlement methods
	CreateGrant(ctx context.Context, g *entitlement.Grant) error
	GetGrant(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) (*entitlement.Grant, error)
	RevokeGrant(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) error
	ListGrants(ctx context.Context, buyer string, opts entitlement.ListOpts) ([]*entitlement.Grant, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
