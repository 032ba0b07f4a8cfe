// Package plugin provides an extensible plugin system for Clawback.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Deposit and ledger hooks
// ──────────────────────────────────────────────────

// OnDepositRecorded is called when a deposit is accepted into a ledger.
type OnDepositRecorded interface {
	Plugin
	OnDepositRecorded(ctx context.Context, dep interface{}) error
}

// OnLedgerCredited is called after a ledger balance increases.
type OnLedgerCredited interface {
	Plugin
	OnLedgerCredited(ctx context.Context, creatorID string, amount, newBalance interface{}) error
}

// OnLedgerDebited is called after a ledger balance decreases.
type OnLedgerDebited interface {
	Plugin
	OnLedgerDebited(ctx context.Context, creatorID string, amount, newBalance interface{}) error
}

// OnSettingsUpdated is called when a creator's refund settings change.
type OnSettingsUpdated interface {
	Plugin
	OnSettingsUpdated(ctx context.Context, l interface{}) error
}

// ──────────────────────────────────────────────────
// Refund lifecycle hooks
// ──────────────────────────────────────────────────

// OnRefundAuthorized is called when a refund passes eligibility and
// enters the processing state.
type OnRefundAuthorized interface {
	Plugin
	OnRefundAuthorized(ctx context.Context, ref interface{}) error
}

// OnRefundCompleted is called when a refund payout settles.
type OnRefundCompleted interface {
	Plugin
	OnRefundCompleted(ctx context.Context, ref interface{}) error
}

// OnRefundFailed is called when a refund payout fails.
type OnRefundFailed interface {
	Plugin
	OnRefundFailed(ctx context.Context, ref interface{}, err error) error
}

// OnRefundRejected is called when a refund is rejected before payout.
type OnRefundRejected interface {
	Plugin
	OnRefundRejected(ctx context.Context, ref interface{}, reason string) error
}

// OnReconciliationNeeded is called when a refund ends in a state that
// requires operator attention.
type OnReconciliationNeeded interface {
	Plugin
	OnReconciliationNeeded(ctx context.Context, ref interface{}) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnAccessChecked is called when content access is evaluated.
type OnAccessChecked interface {
	Plugin
	OnAccessChecked(ctx context.Context, buyer string, result interface{}) error
}

// OnEntitlementRevoked is called when a grant is revoked.
type OnEntitlementRevoked interface {
	Plugin
	OnEntitlementRevoked(ctx context.Context, kind, subjectID, buyer string) error
}

// OnRevocationFailed is called when a grant revocation cannot be applied.
type OnRevocationFailed interface {
	Plugin
	OnRevocationFailed(ctx context.Context, kind, subjectID, buyer string, err error) error
}

// ──────────────────────────────────────────────────
// Payout backend hooks
// ──────────────────────────────────────────────────

// PayoutBackendPlugin provides a payout backend implementation.
type PayoutBackendPlugin interface {
	Plugin
	Backend() interface{} // Returns payout.Backend
}
