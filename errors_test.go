package clawback

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		ineligible  bool
		idempotency bool
		retryable   bool
		notFound    bool
	}{
		{"tip not refundable", ErrTipNotRefundable, true, false, false, false},
		{"refunds disabled", ErrRefundsDisabled, true, false, false, false},
		{"insufficient balance", ErrInsufficientBalance, true, false, false, false},
		{"daily limit", ErrDailyLimitExceeded, true, false, false, false},
		{"duplicate deposit", ErrDuplicateDeposit, false, true, false, false},
		{"already processed", ErrAlreadyProcessed, false, true, false, false},
		{"payout failed", ErrPayoutFailed, false, false, true, false},
		{"reconcile required", ErrReconcileRequired, false, false, false, false},
		{"ledger not found", ErrLedgerNotFound, false, false, false, true},
		{"refund not found", ErrRefundNotFound, false, false, false, true},
		{"grant not found", ErrGrantNotFound, false, false, false, true},
		{"wrapped payout failure", fmt.Errorf("%w: provider said no", ErrPayoutFailed), false, false, true, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIneligible(tt.err); got != tt.ineligible {
				t.Errorf("IsIneligible: got %v, want %v", got, tt.ineligible)
			}
			if got := IsIdempotencyReject(tt.err); got != tt.idempotency {
				t.Errorf("IsIdempotencyReject: got %v, want %v", got, tt.idempotency)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable: got %v, want %v", got, tt.retryable)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound: got %v, want %v", got, tt.notFound)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "creator_id", Message: "required"}

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}

	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "creator_id" {
		t.Errorf("errors.As: got %+v", verr)
	}

	want := "clawback: validation failed for creator_id: required"
	if err.Error() != want {
		t.Errorf("Error(): got %q, want %q", err.Error(), want)
	}
}
