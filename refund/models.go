// Package refund defines the refund record and its state machine:
// processing → completed | failed | rejected.
package refund

import (
	"time"

	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/types"
)

// Kind names what the original purchase bought. Tips (one-off and
// recurring) are categorically non-refundable.
type Kind string

const (
	KindUnlock       Kind = "unlock"
	KindSubscription Kind = "subscription"
	KindRecurringTip Kind = "recurring_tip"
	KindTip          Kind = "tip"
)

// Refundable reports whether this kind can ever reach a payout.
func (k Kind) Refundable() bool {
	return k == KindUnlock || k == KindSubscription
}

// Status of a refund attempt. Completed, failed and rejected are
// terminal; a record transitions into exactly one of them once.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// Refund is one refund attempt against an original purchase.
//
// RefundAmount = OriginalAmount - FeeAmount; the fee is the platform's
// retained share and never moves anywhere; it is simply the gap
// between what the buyer paid and what is returned.
type Refund struct {
	types.Entity
	ID             id.RefundID `json:"id"`
	CreatorID      string      `json:"creator_id"`
	BuyerAddress   string      `json:"buyer_address"`
	OriginalTxRef  string      `json:"original_tx_ref"`
	Kind           Kind        `json:"kind"`
	PostID         string      `json:"post_id,omitempty"`
	ChainID        string      `json:"chain_id,omitempty"`
	OriginalAmount types.Money `json:"original_amount"`
	FeeAmount      types.Money `json:"fee_amount"`
	RefundAmount   types.Money `json:"refund_amount"`
	Status         Status      `json:"status"`
	Reason         string      `json:"reason,omitempty"`
	PayoutBackend  string      `json:"payout_backend,omitempty"`
	PayoutTxRef    string      `json:"payout_tx_ref,omitempty"`
	NeedsReconcile bool        `json:"needs_reconcile,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// ListOpts filters refund listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
