// Package observability provides a metrics extension for Clawback that
// records lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/clawback/plugin"
	"github.com/xraph/clawback/refund"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnDepositRecorded      = (*MetricsExtension)(nil)
	_ plugin.OnLedgerCredited       = (*MetricsExtension)(nil)
	_ plugin.OnLedgerDebited        = (*MetricsExtension)(nil)
	_ plugin.OnRefundAuthorized     = (*MetricsExtension)(nil)
	_ plugin.OnRefundCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnRefundFailed         = (*MetricsExtension)(nil)
	_ plugin.OnRefundRejected       = (*MetricsExtension)(nil)
	_ plugin.OnReconciliationNeeded = (*MetricsExtension)(nil)
	_ plugin.OnAccessChecked        = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementRevoked   = (*MetricsExtension)(nil)
	_ plugin.OnRevocationFailed     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Clawback plugin to automatically track refund metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	DepositsRecorded Counter
	LedgerCredits    Counter
	LedgerDebits     Counter

	// Refund metrics
	RefundsAuthorized Counter
	RefundsCompleted  Counter
	RefundsFailed     Counter
	RefundsRejected   Counter

	// RefundDuration observes authorize-to-settle seconds, dominated by
	// the external payout round trip.
	RefundDuration Histogram

	// Reconciliation metrics
	ReconciliationsNeeded Counter

	// Entitlement metrics
	AccessChecks        Counter
	EntitlementsRevoked Counter
	RevocationFailures  Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Ledger metrics
		DepositsRecorded: factory.Counter("clawback.deposit.recorded"),
		LedgerCredits:    factory.Counter("clawback.ledger.credits"),
		LedgerDebits:     factory.Counter("clawback.ledger.debits"),

		// Refund metrics
		RefundsAuthorized: factory.Counter("clawback.refund.authorized"),
		RefundsCompleted:  factory.Counter("clawback.refund.completed"),
		RefundsFailed:     factory.Counter("clawback.refund.failed"),
		RefundsRejected:   factory.Counter("clawback.refund.rejected"),
		RefundDuration:    factory.Histogram("clawback.refund.duration_seconds"),

		// Reconciliation metrics
		ReconciliationsNeeded: factory.Counter("clawback.reconciliation.needed"),

		// Entitlement metrics
		AccessChecks:        factory.Counter("clawback.access.checks"),
		EntitlementsRevoked: factory.Counter("clawback.entitlement.revoked"),
		RevocationFailures:  factory.Counter("clawback.revocation.failures"),

		// Error metrics
		StoreErrors:  factory.Counter("clawback.store.errors"),
		PluginErrors: factory.Counter("clawback.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Deposit and ledger hooks
// ──────────────────────────────────────────────────

// OnDepositRecorded implements plugin.OnDepositRecorded.
func (m *MetricsExtension) OnDepositRecorded(_ context.Context, _ interface{}) error {
	m.DepositsRecorded.Inc()
	return nil
}

// OnLedgerCredited implements plugin.OnLedgerCredited.
func (m *MetricsExtension) OnLedgerCredited(_ context.Context, _ string, _, _ interface{}) error {
	m.LedgerCredits.Inc()
	return nil
}

// OnLedgerDebited implements plugin.OnLedgerDebited.
func (m *MetricsExtension) OnLedgerDebited(_ context.Context, _ string, _, _ interface{}) error {
	m.LedgerDebits.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Refund lifecycle hooks
// ──────────────────────────────────────────────────

// OnRefundAuthorized implements plugin.OnRefundAuthorized.
func (m *MetricsExtension) OnRefundAuthorized(_ context.Context, _ interface{}) error {
	m.RefundsAuthorized.Inc()
	return nil
}

// OnRefundCompleted implements plugin.OnRefundCompleted.
func (m *MetricsExtension) OnRefundCompleted(_ context.Context, ref interface{}) error {
	m.RefundsCompleted.Inc()
	if rec, ok := ref.(*refund.Refund); ok && rec.CompletedAt != nil {
		m.RefundDuration.Observe(rec.CompletedAt.Sub(rec.CreatedAt).Seconds())
	}
	return nil
}

// OnRefundFailed implements plugin.OnRefundFailed.
func (m *MetricsExtension) OnRefundFailed(_ context.Context, _ interface{}, _ error) error {
	m.RefundsFailed.Inc()
	return nil
}

// OnRefundRejected implements plugin.OnRefundRejected.
func (m *MetricsExtension) OnRefundRejected(_ context.Context, _ interface{}, _ string) error {
	m.RefundsRejected.Inc()
	return nil
}

// OnReconciliationNeeded implements plugin.OnReconciliationNeeded.
func (m *MetricsExtension) OnReconciliationNeeded(_ context.Context, _ interface{}) error {
	m.ReconciliationsNeeded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnAccessChecked implements plugin.OnAccessChecked.
func (m *MetricsExtension) OnAccessChecked(_ context.Context, _ string, _ interface{}) error {
	m.AccessChecks.Inc()
	return nil
}

// OnEntitlementRevoked implements plugin.OnEntitlementRevoked.
func (m *MetricsExtension) OnEntitlementRevoked(_ context.Context, _, _, _ string) error {
	m.EntitlementsRevoked.Inc()
	return nil
}

// OnRevocationFailed implements plugin.OnRevocationFailed.
func (m *MetricsExtension) OnRevocationFailed(_ context.Context, _, _, _ string, _ error) error {
	m.RevocationFailures.Inc()
	return nil
}
