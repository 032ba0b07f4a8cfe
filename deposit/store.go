package deposit

import "context"

// Store is the persistence contract for deposits. The uniqueness of
// ExternalTxRef is the dedup source of truth: Create must fail with
// ErrDuplicateDeposit on a repeated reference even across process
// restarts, so an in-memory seen-set is not an acceptable substitute.
type Store interface {
	// CreateDeposit inserts a deposit. Fails with ErrDuplicateDeposit if
	// the ExternalTxRef was already recorded.
	CreateDeposit(ctx context.Context, d *Deposit) error

	// GetDepositByRef returns the deposit recorded for an external
	// transaction reference.
	GetDepositByRef(ctx context.Context, externalTxRef string) (*Deposit, error)

	// ListDeposits returns deposits for a creator, newest first.
	ListDeposits(ctx context.Context, creatorID string, opts ListOpts) ([]*Deposit, error)
}
