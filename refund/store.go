package refund

import (
	"context"

	"github.com/xraph/clawback/id"
)

// Store is the persistence contract for refund records.
type Store interface {
	// CreateRefund inserts a refund record.
	CreateRefund(ctx context.Context, r *Refund) error

	// GetRefund returns a refund by ID.
	GetRefund(ctx context.Context, refundID id.RefundID) (*Refund, error)

	// GetActiveRefundByRef returns the processing or completed refund for
	// an original transaction reference, if one exists. Rejected and
	// failed attempts do not count: they may be retried with a fresh
	// request.
	GetActiveRefundByRef(ctx context.Context, originalTxRef string) (*Refund, error)

	// UpdateRefund persists status, reason and payout reference changes.
	UpdateRefund(ctx context.Context, r *Refund) error

	// ListRefunds returns refunds for a creator, newest first.
	ListRefunds(ctx context.Context, creatorID string, opts ListOpts) ([]*Refund, error)
}
