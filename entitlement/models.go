// Package entitlement defines durable access grants (what a buyer
// currently has access to) and the result of an access evaluation.
package entitlement

import (
	"time"

	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/types"
)

// Kind names the shape of a grant.
type Kind string

const (
	KindUnlock       Kind = "unlock"
	KindSubscription Kind = "subscription"
	KindRecurringTip Kind = "recurring_tip"
)

// Grant is one durable access record. Unlock grants are keyed by
// (post, buyer) and never expire; subscription and recurring-tip grants
// are keyed by (creator, buyer) and carry an ActiveUntil horizon.
//
// Expired grants are not purged; activity is always evaluated at
// time-of-check against ActiveUntil.
type Grant struct {
	types.Entity
	ID    id.GrantID `json:"id"`
	Kind  Kind       `json:"kind"`
	Buyer string     `json:"buyer"`

	// SubjectID is the post ID for unlock grants and the creator ID for
	// subscription and recurring-tip grants.
	SubjectID string `json:"subject_id"`

	// ActiveUntil is the expiry horizon for time-bound grants. Nil for
	// unlock grants.
	ActiveUntil *time.Time `json:"active_until,omitempty"`
}

// ActiveAt reports whether the grant confers access at time t.
// Unlock grants are always active; time-bound grants require
// ActiveUntil to be strictly in the future.
func (g *Grant) ActiveAt(t time.Time) bool {
	if g.ActiveUntil == nil {
		return true
	}
	return g.ActiveUntil.After(t)
}

// NewID returns a fresh grant ID with the prefix matching the kind.
func (k Kind) NewID() id.GrantID {
	switch k {
	case KindUnlock:
		return id.New(id.PrefixUnlock)
	case KindSubscription:
		return id.New(id.PrefixSubscription)
	default:
		return id.New(id.PrefixRecurringTip)
	}
}

// Reason explains the outcome of an access evaluation, in precedence
// order: free posts grant to everyone, then unlocks, then active
// subscriptions, then active recurring tips.
type Reason string

const (
	ReasonFree         Reason = "free"
	ReasonUnlocked     Reason = "unlocked"
	ReasonSubscription Reason = "subscription"
	ReasonRecurringTip Reason = "recurring_tip"
	ReasonLocked       Reason = "locked"
)

// Access is the result of an access evaluation.
type Access struct {
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`
}

// ListOpts filters grant listings.
type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
