package clawback

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("clawback: not found")
	ErrInvalidInput = errors.New("clawback: invalid input")

	// Ledger errors
	ErrLedgerNotFound      = errors.New("clawback: ledger not found")
	ErrInsufficientBalance = errors.New("clawback: insufficient balance")
	ErrDailyLimitExceeded  = errors.New("clawback: daily refund limit exceeded")
	ErrRefundsDisabled     = errors.New("clawback: refunds disabled for creator")

	// Deposit errors
	ErrDuplicateDeposit = errors.New("clawback: deposit already recorded")
	ErrDepositNotFound  = errors.New("clawback: deposit not found")

	// Refund errors
	ErrRefundNotFound       = errors.New("clawback: refund not found")
	ErrAlreadyProcessed     = errors.New("clawback: refund already processed for transaction")
	ErrTipNotRefundable     = errors.New("clawback: tips are not refundable")
	ErrPayoutFailed         = errors.New("clawback: payout failed")
	ErrReconcileRequired    = errors.New("clawback: payout confirmed but ledger not settled; manual reconciliation required")
	ErrBackendNotConfigured = errors.New("clawback: no payout backend configured")

	// Entitlement errors
	ErrGrantNotFound = errors.New("clawback: grant not found")

	// Store errors
	ErrStoreNotReady     = errors.New("clawback: store not ready")
	ErrStoreClosed       = errors.New("clawback: store is closed")
	ErrTransactionFailed = errors.New("clawback: transaction failed")
	ErrMigrationFailed   = errors.New("clawback: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("clawback: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes ValidationError match ErrInvalidInput in errors.Is checks.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsIneligible returns true if the error is an eligibility rejection:
// the refund was declined before any payout call and the ledger is
// untouched. The specific sentinel carries the reason for the caller.
func IsIneligible(err error) bool {
	return errors.Is(err, ErrTipNotRefundable) ||
		errors.Is(err, ErrRefundsDisabled) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDailyLimitExceeded)
}

// IsIdempotencyReject returns true if the error is a duplicate-delivery
// rejection rather than a failure: the first occurrence already took
// effect.
func IsIdempotencyReject(err error) bool {
	return errors.Is(err, ErrDuplicateDeposit) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsRetryable returns true if the operation can be safely retried by
// the caller. Payout failures retry as a fresh refund request, never by
// replaying the same attempt; reconciliation errors are explicitly not
// retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrPayoutFailed)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLedgerNotFound) ||
		errors.Is(err, ErrDepositNotFound) ||
		errors.Is(err, ErrRefundNotFound) ||
		errors.Is(err, ErrGrantNotFound)
}
