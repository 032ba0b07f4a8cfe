package ledger

import (
	"context"

	"github.com/xraph/clawback/types"
)

// Store is the persistence contract for creator ledgers and daily spend
// counters. Credit, Debit and AddSpentToday must each be atomic per
// creator: a read-modify-write that can interleave with another writer
// for the same creator is a correctness bug (double refund), not a
// performance concern.
type Store interface {
	// GetLedger returns the ledger for a creator.
	GetLedger(ctx context.Context, creatorID string) (*CreatorLedger, error)

	// UpsertLedger creates the ledger if absent, otherwise replaces its
	// settings fields. The balance is never written through this path.
	UpsertLedger(ctx context.Context, l *CreatorLedger) error

	// Credit atomically adds amount to the creator's balance, creating
	// the ledger record on first deposit. Returns the new balance.
	Credit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error)

	// Debit atomically subtracts amount from the creator's balance.
	// Fails with ErrInsufficientBalance if amount exceeds the balance;
	// the balance is untouched on failure.
	Debit(ctx context.Context, creatorID string, amount types.Money) (types.Money, error)

	// SpentToday returns the accumulated refund volume for the given day.
	// A missing record reads as zero.
	SpentToday(ctx context.Context, creatorID string, day Day) (types.Money, error)

	// AddSpentToday atomically adds amount to the day's counter, creating
	// the zero-initialized record if this is the first refund of the day.
	// Returns the new total.
	AddSpentToday(ctx context.Context, creatorID string, day Day, amount types.Money) (types.Money, error)
}
