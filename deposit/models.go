// Package deposit defines confirmed on-chain deposits that fund a
// creator's refund balance.
package deposit

import (
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/types"
)

// Status of a deposit record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Deposit is one confirmed funding event. ExternalTxRef is the on-chain
// transaction reference and the idempotency key: the same notification
// delivered twice credits the ledger exactly once.
type Deposit struct {
	types.Entity
	ID            id.DepositID `json:"id"`
	CreatorID     string       `json:"creator_id"`
	Amount        types.Money  `json:"amount"`
	ExternalTxRef string       `json:"external_tx_ref"`
	Status        Status       `json:"status"`
}

// ListOpts filters deposit listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
