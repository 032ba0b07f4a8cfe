// Package audithook bridges Clawback lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their audit backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/clawback/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnDepositRecorded      = (*Extension)(nil)
	_ plugin.OnLedgerDebited        = (*Extension)(nil)
	_ plugin.OnSettingsUpdated      = (*Extension)(nil)
	_ plugin.OnRefundAuthorized     = (*Extension)(nil)
	_ plugin.OnRefundCompleted      = (*Extension)(nil)
	_ plugin.OnRefundFailed         = (*Extension)(nil)
	_ plugin.OnRefundRejected       = (*Extension)(nil)
	_ plugin.OnReconciliationNeeded = (*Extension)(nil)
	_ plugin.OnEntitlementRevoked   = (*Extension)(nil)
	_ plugin.OnRevocationFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import
// a concrete audit system; callers inject one at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Clawback lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Deposit and ledger hooks
// ──────────────────────────────────────────────────

// OnDepositRecorded implements plugin.OnDepositRecorded.
func (e *Extension) OnDepositRecorded(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionDepositRecorded, SeverityInfo, OutcomeSuccess,
		ResourceDeposit, "", CategoryLedger, nil,
		"event", "deposit_recorded",
	)
}

// OnLedgerDebited implements plugin.OnLedgerDebited.
func (e *Extension) OnLedgerDebited(ctx context.Context, creatorID string, _, _ interface{}) error {
	return e.record(ctx, ActionLedgerDebited, SeverityInfo, OutcomeSuccess,
		ResourceLedger, creatorID, CategoryLedger, nil,
		"creator_id", creatorID,
	)
}

// OnSettingsUpdated implements plugin.OnSettingsUpdated.
func (e *Extension) OnSettingsUpdated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSettingsUpdated, SeverityInfo, OutcomeSuccess,
		ResourceLedger, "", CategoryLedger, nil,
		"event", "settings_updated",
	)
}

// ──────────────────────────────────────────────────
// Refund lifecycle hooks
// ──────────────────────────────────────────────────

// OnRefundAuthorized implements plugin.OnRefundAuthorized.
func (e *Extension) OnRefundAuthorized(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionRefundAuthorized, SeverityInfo, OutcomeSuccess,
		ResourceRefund, "", CategoryRefund, nil,
		"event", "refund_authorized",
	)
}

// OnRefundCompleted implements plugin.OnRefundCompleted.
func (e *Extension) OnRefundCompleted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionRefundCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRefund, "", CategoryRefund, nil,
		"event", "refund_completed",
	)
}

// OnRefundFailed implements plugin.OnRefundFailed.
func (e *Extension) OnRefundFailed(ctx context.Context, _ interface{}, err error) error {
	return e.record(ctx, ActionRefundFailed, SeverityError, OutcomeFailure,
		ResourceRefund, "", CategoryRefund, err,
		"event", "refund_failed",
	)
}

// OnRefundRejected implements plugin.OnRefundRejected.
func (e *Extension) OnRefundRejected(ctx context.Context, _ interface{}, reason string) error {
	return e.record(ctx, ActionRefundRejected, SeverityWarning, OutcomeDenied,
		ResourceRefund, "", CategoryRefund, nil,
		"event", "refund_rejected",
		"reject_reason", reason,
	)
}

// OnReconciliationNeeded implements plugin.OnReconciliationNeeded.
// Reconciliation events always mean money moved without the ledger
// settling, so they are recorded at critical severity.
func (e *Extension) OnReconciliationNeeded(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionReconciliationNeeded, SeverityCritical, OutcomeFailure,
		ResourceRefund, "", CategoryOperational, nil,
		"event", "reconciliation_needed",
	)
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementRevoked implements plugin.OnEntitlementRevoked.
func (e *Extension) OnEntitlementRevoked(ctx context.Context, kind, subjectID, buyer string) error {
	return e.record(ctx, ActionEntitlementRevoked, SeverityInfo, OutcomeSuccess,
		ResourceEntitlement, subjectID, CategoryAccess, nil,
		"kind", kind,
		"subject_id", subjectID,
		"buyer", buyer,
	)
}

// OnRevocationFailed implements plugin.OnRevocationFailed.
func (e *Extension) OnRevocationFailed(ctx context.Context, kind, subjectID, buyer string, err error) error {
	return e.record(ctx, ActionRevocationFailed, SeverityError, OutcomeFailure,
		ResourceEntitlement, subjectID, CategoryAccess, err,
		"kind", kind,
		"subject_id", subjectID,
		"buyer", buyer,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
