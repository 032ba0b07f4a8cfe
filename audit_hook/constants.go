package audithook

// Audit actions for refund ledger lifecycle events.
const (
	// Deposit and ledger actions
	ActionDepositRecorded = "deposit.recorded"
	ActionLedgerCredited  = "ledger.credited"
	ActionLedgerDebited   = "ledger.debited"
	ActionSettingsUpdated = "settings.updated"

	// Refund actions
	ActionRefundAuthorized = "refund.authorized"
	ActionRefundCompleted  = "refund.completed"
	ActionRefundFailed     = "refund.failed"
	ActionRefundRejected   = "refund.rejected"

	// Reconciliation actions
	ActionReconciliationNeeded = "reconciliation.needed"

	// Entitlement actions
	ActionAccessChecked      = "access.checked"
	ActionEntitlementRevoked = "entitlement.revoked"
	ActionRevocationFailed   = "revocation.failed"
)

// Audit resources.
const (
	ResourceLedger      = "ledger"
	ResourceDeposit     = "deposit"
	ResourceRefund      = "refund"
	ResourceEntitlement = "entitlement"
)

// Audit categories.
const (
	CategoryLedger      = "ledger"
	CategoryRefund      = "refund"
	CategoryAccess      = "access"
	CategoryOperational = "operational"
)

// Audit severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)
