// Package ledger defines the per-creator spendable refund balance and
// the rolling daily spend counter that funds automated payouts.
package ledger

import (
	"time"

	"github.com/xraph/clawback/types"
)

// CreatorLedger is the per-creator refund funding record. The balance is
// credited by confirmed deposits and debited by completed refunds; it
// never goes negative.
type CreatorLedger struct {
	types.Entity
	CreatorID string      `json:"creator_id"`
	Balance   types.Money `json:"balance"`

	// DailyLimit caps the refund volume authorized per UTC day. A zero
	// limit means uncapped; the balance check still applies.
	DailyLimit types.Money `json:"daily_limit"`

	RefundsEnabled bool `json:"refunds_enabled"`

	// WalletProvider names the custodial payout backend this creator's
	// wallet was provisioned under. Empty means the engine default.
	WalletProvider string `json:"wallet_provider,omitempty"`
}

// DailySpend is the per-(creator, UTC day) refund volume counter.
// It is created lazily on the first refund of a day and accumulates
// monotonically; a new day starts a fresh record at zero.
type DailySpend struct {
	CreatorID     string      `json:"creator_id"`
	Day           Day         `json:"day"`
	TotalRefunded types.Money `json:"total_refunded"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Day is a UTC calendar date in "2006-01-02" form, the key for daily
// spend records.
type Day string

// DayOf returns the Day containing t, in UTC.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format("2006-01-02"))
}

// Today returns the current UTC Day.
func Today() Day {
	return DayOf(time.Now())
}

// String returns the day in "2006-01-02" form.
func (d Day) String() string { return string(d) }

// SettingsChange is a partial update to the operator-controlled ledger
// settings. Nil fields are left unchanged.
type SettingsChange struct {
	DailyLimit     *types.Money `json:"daily_limit,omitempty"`
	RefundsEnabled *bool        `json:"refunds_enabled,omitempty"`
	WalletProvider *string      `json:"wallet_provider,omitempty"`
}

// IsEmpty reports whether the change would modify nothing.
func (c SettingsChange) IsEmpty() bool {
	return c.DailyLimit == nil && c.RefundsEnabled == nil && c.WalletProvider == nil
}
