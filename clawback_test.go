package clawback_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	clawback "github.com/xraph/clawback"
	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/payout"
	"github.com/xraph/clawback/refund"
	"github.com/xraph/clawback/store/memory"
	"github.com/xraph/clawback/types"
)

// stubBackend is a payout backend with a scripted outcome. A non-zero
// delay simulates the external round trip so concurrent refunds stay
// in flight long enough to overlap at authorization.
type stubBackend struct {
	mu     sync.Mutex
	name   string
	calls  []payout.Request
	result *payout.Result
	err    error
	delay  time.Duration
}

func (b *stubBackend) Name() string {
	if b.name == "" {
		return "stub"
	}
	return b.name
}

func (b *stubBackend) Payout(_ context.Context, req payout.Request) (*payout.Result, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()

	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.result != nil {
		return b.result, nil
	}
	return &payout.Result{Success: true, ExternalTxRef: "ext-" + req.IdempotencyKey}, nil
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *stubBackend) lastCall() payout.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

// walletStub adds wallet provisioning to stubBackend.
type walletStub struct {
	stubBackend
	provisioned []string
}

func (b *walletStub) InitializeWallet(_ context.Context, creatorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.provisioned = append(b.provisioned, creatorID)
	return nil
}

func newTestEngine(t *testing.T, opts ...clawback.Option) *clawback.Engine {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]clawback.Option{clawback.WithLogger(quiet)}, opts...)

	eng := clawback.New(memory.New(), opts...)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return eng
}

// fundCreator deposits amount and enables refunds for the creator.
func fundCreator(t *testing.T, eng *clawback.Engine, creatorID string, amount types.Money) {
	t.Helper()
	ctx := context.Background()

	if _, err := eng.RecordDeposit(ctx, creatorID, amount, "fund-"+creatorID); err != nil {
		t.Fatalf("RecordDeposit: %v", err)
	}
	enabled := true
	if _, err := eng.UpdateLedgerSettings(ctx, creatorID, ledger.SettingsChange{RefundsEnabled: &enabled}); err != nil {
		t.Fatalf("UpdateLedgerSettings: %v", err)
	}
}

func unlockRefund(creatorID, txRef string, amount types.Money) clawback.RefundRequest {
	return clawback.RefundRequest{
		CreatorID:      creatorID,
		BuyerAddress:   "0xbuyer",
		OriginalTxRef:  txRef,
		Kind:           refund.KindUnlock,
		OriginalAmount: amount,
		PostID:         "post-1",
	}
}

// ──────────────────────────────────────────────────
// Deposits
// ──────────────────────────────────────────────────

func TestRecordDeposit(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	dep, err := eng.RecordDeposit(ctx, "creator-1", types.USD(10000), "tx-1")
	if err != nil {
		t.Fatalf("RecordDeposit: %v", err)
	}
	if dep.ID.IsNil() {
		t.Error("expected non-nil deposit ID")
	}
	if dep.Status != deposit.StatusConfirmed {
		t.Errorf("status: got %s, want confirmed", dep.Status)
	}

	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if !status.Balance.Equal(types.USD(10000)) {
		t.Errorf("balance: got %v, want %v", status.Balance, types.USD(10000))
	}
}

func TestRecordDepositIdempotent(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	if _, err := eng.RecordDeposit(ctx, "creator-1", types.USD(5000), "tx-dup"); err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	// Redelivery of the same external reference must not credit twice.
	_, err := eng.RecordDeposit(ctx, "creator-1", types.USD(5000), "tx-dup")
	if !errors.Is(err, clawback.ErrDuplicateDeposit) {
		t.Fatalf("expected ErrDuplicateDeposit, got %v", err)
	}

	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if !status.Balance.Equal(types.USD(5000)) {
		t.Errorf("balance after duplicate: got %v, want %v", status.Balance, types.USD(5000))
	}

	deps, err := eng.ListDeposits(ctx, "creator-1", deposit.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeposits: %v", err)
	}
	if len(deps) != 1 {
		t.Errorf("deposits: got %d, want 1", len(deps))
	}
}

func TestRecordDepositValidation(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	tests := []struct {
		name      string
		creatorID string
		amount    types.Money
		txRef     string
	}{
		{"missing creator", "", types.USD(100), "tx-1"},
		{"missing ref", "creator-1", types.USD(100), ""},
		{"zero amount", "creator-1", types.USD(0), "tx-1"},
		{"negative amount", "creator-1", types.USD(-100), "tx-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.RecordDeposit(ctx, tt.creatorID, tt.amount, tt.txRef)
			var verr clawback.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Refund lifecycle
// ──────────────────────────────────────────────────

func TestRequestRefundCompletes(t *testing.T) {
	backend := &stubBackend{}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(5000))

	// The buyer holds an unlock grant that the refund must revoke.
	if err := eng.Grant(ctx, &entitlement.Grant{
		Kind:      entitlement.KindUnlock,
		Buyer:     "0xbuyer",
		SubjectID: "post-1",
	}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	rec, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(3000)))
	if err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}

	if rec.Status != refund.StatusCompleted {
		t.Errorf("status: got %s, want completed", rec.Status)
	}
	// 2% platform fee: $30.00 splits into $0.60 fee and $29.40 net.
	if !rec.FeeAmount.Equal(types.USD(60)) {
		t.Errorf("fee: got %v, want %v", rec.FeeAmount, types.USD(60))
	}
	if !rec.RefundAmount.Equal(types.USD(2940)) {
		t.Errorf("net: got %v, want %v", rec.RefundAmount, types.USD(2940))
	}
	if rec.PayoutTxRef == "" {
		t.Error("expected payout tx ref")
	}
	if rec.CompletedAt == nil {
		t.Error("expected CompletedAt")
	}
	if rec.NeedsReconcile {
		t.Error("completed refund must not need reconcile")
	}

	// The backend received the net amount, keyed by the refund ID.
	if backend.callCount() != 1 {
		t.Fatalf("backend calls: got %d, want 1", backend.callCount())
	}
	call := backend.lastCall()
	if !call.Amount.Equal(types.USD(2940)) {
		t.Errorf("payout amount: got %v, want %v", call.Amount, types.USD(2940))
	}
	if call.IdempotencyKey != rec.ID.String() {
		t.Errorf("idempotency key: got %s, want %s", call.IdempotencyKey, rec.ID.String())
	}
	if call.BuyerAddress != "0xbuyer" {
		t.Errorf("buyer address: got %s", call.BuyerAddress)
	}

	// Ledger settled: balance down by net, daily counter up by net.
	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if !status.Balance.Equal(types.USD(2060)) {
		t.Errorf("balance: got %v, want %v", status.Balance, types.USD(2060))
	}
	if !status.SpentToday.Equal(types.USD(2940)) {
		t.Errorf("spent today: got %v, want %v", status.SpentToday, types.USD(2940))
	}

	// The unlock grant is gone.
	access, err := eng.CheckAccess(ctx, clawback.Post{ID: "post-1", CreatorID: "creator-1", Price: types.USD(500)}, "0xbuyer")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if access.Granted {
		t.Errorf("expected access revoked, got %s", access.Reason)
	}
}

func TestTipsNotRefundable(t *testing.T) {
	backend := &stubBackend{}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))

	for _, kind := range []refund.Kind{refund.KindTip, refund.KindRecurringTip} {
		t.Run(string(kind), func(t *testing.T) {
			req := unlockRefund("creator-1", "tip-"+string(kind), types.USD(1000))
			req.Kind = kind
			req.PostID = ""

			_, err := eng.RequestRefund(ctx, req)
			if !errors.Is(err, clawback.ErrTipNotRefundable) {
				t.Fatalf("expected ErrTipNotRefundable, got %v", err)
			}
		})
	}

	// Categorical rejections leave no record and never touch the backend.
	recs, err := eng.ListRefunds(ctx, "creator-1", refund.ListOpts{})
	if err != nil {
		t.Fatalf("ListRefunds: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no refund records, got %d", len(recs))
	}
	if backend.callCount() != 0 {
		t.Errorf("backend calls: got %d, want 0", backend.callCount())
	}
}

func TestRefundIdempotentPerOriginalTx(t *testing.T) {
	backend := &stubBackend{}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))

	first, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000)))
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}

	second, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000)))
	if !errors.Is(err, clawback.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if second == nil || second.ID.String() != first.ID.String() {
		t.Error("expected the existing refund record back")
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls: got %d, want 1", backend.callCount())
	}
}

func TestRefundEligibilityRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("no ledger", func(t *testing.T) {
		backend := &stubBackend{}
		eng := newTestEngine(t, clawback.WithBackend(backend))

		rec, err := eng.RequestRefund(ctx, unlockRefund("ghost", "buy-1", types.USD(1000)))
		if !errors.Is(err, clawback.ErrRefundsDisabled) {
			t.Fatalf("expected ErrRefundsDisabled, got %v", err)
		}
		if rec == nil || rec.Status != refund.StatusRejected {
			t.Error("expected a persisted rejected record")
		}
		if backend.callCount() != 0 {
			t.Error("backend must not be called")
		}
	})

	t.Run("refunds disabled", func(t *testing.T) {
		backend := &stubBackend{}
		eng := newTestEngine(t, clawback.WithBackend(backend))

		// Funded, but the enabled flag was never set.
		if _, err := eng.RecordDeposit(ctx, "creator-1", types.USD(10000), "tx-1"); err != nil {
			t.Fatalf("RecordDeposit: %v", err)
		}

		_, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(1000)))
		if !errors.Is(err, clawback.ErrRefundsDisabled) {
			t.Fatalf("expected ErrRefundsDisabled, got %v", err)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		backend := &stubBackend{}
		eng := newTestEngine(t, clawback.WithBackend(backend))

		fundCreator(t, eng, "creator-1", types.USD(1000))

		_, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(3000)))
		if !errors.Is(err, clawback.ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
		if backend.callCount() != 0 {
			t.Error("backend must not be called")
		}

		// Balance untouched.
		status, err := eng.LedgerStatus(ctx, "creator-1")
		if err != nil {
			t.Fatalf("LedgerStatus: %v", err)
		}
		if !status.Balance.Equal(types.USD(1000)) {
			t.Errorf("balance: got %v, want %v", status.Balance, types.USD(1000))
		}
	})

	t.Run("daily limit", func(t *testing.T) {
		backend := &stubBackend{}
		eng := newTestEngine(t, clawback.WithBackend(backend))

		fundCreator(t, eng, "creator-1", types.USD(10000))
		limit := types.USD(3000)
		if _, err := eng.UpdateLedgerSettings(ctx, "creator-1", ledger.SettingsChange{DailyLimit: &limit}); err != nil {
			t.Fatalf("UpdateLedgerSettings: %v", err)
		}

		// $20 refund nets $19.60, inside the $30 cap.
		if _, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000))); err != nil {
			t.Fatalf("first refund: %v", err)
		}

		// $15 refund nets $14.70; 19.60 + 14.70 > 30.00.
		_, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-2", types.USD(1500)))
		if !errors.Is(err, clawback.ErrDailyLimitExceeded) {
			t.Fatalf("expected ErrDailyLimitExceeded, got %v", err)
		}

		// The rejected attempt is on the books for audit.
		rejected, err := eng.ListRefunds(ctx, "creator-1", refund.ListOpts{Status: refund.StatusRejected})
		if err != nil {
			t.Fatalf("ListRefunds: %v", err)
		}
		if len(rejected) != 1 {
			t.Errorf("rejected records: got %d, want 1", len(rejected))
		}
	})
}

func TestRefundPayoutDeclined(t *testing.T) {
	backend := &stubBackend{result: &payout.Result{Success: false, ProviderError: "insufficient custodial funds"}}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))
	if err := eng.Grant(ctx, &entitlement.Grant{
		Kind:      entitlement.KindUnlock,
		Buyer:     "0xbuyer",
		SubjectID: "post-1",
	}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	rec, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000)))
	if !errors.Is(err, clawback.ErrPayoutFailed) {
		t.Fatalf("expected ErrPayoutFailed, got %v", err)
	}
	if rec.Status != refund.StatusFailed {
		t.Errorf("status: got %s, want failed", rec.Status)
	}
	if rec.NeedsReconcile {
		t.Error("definitive decline must not need reconcile")
	}

	// No money moved, no entitlement touched.
	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if !status.Balance.Equal(types.USD(10000)) {
		t.Errorf("balance: got %v, want %v", status.Balance, types.USD(10000))
	}
	if !status.SpentToday.IsZero() {
		t.Errorf("spent today: got %v, want 0", status.SpentToday)
	}
	access, err := eng.CheckAccess(ctx, clawback.Post{ID: "post-1", CreatorID: "creator-1", Price: types.USD(500)}, "0xbuyer")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if !access.Granted || access.Reason != entitlement.ReasonUnlocked {
		t.Errorf("grant must survive a failed refund, got %v/%s", access.Granted, access.Reason)
	}
}

func TestRefundPayoutAmbiguous(t *testing.T) {
	backend := &stubBackend{err: fmt.Errorf("gateway timeout")}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))

	rec, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000)))
	if !errors.Is(err, clawback.ErrPayoutFailed) {
		t.Fatalf("expected ErrPayoutFailed, got %v", err)
	}
	if rec.Status != refund.StatusFailed {
		t.Errorf("status: got %s, want failed", rec.Status)
	}
	// A transport error means the transfer may have gone through.
	if !rec.NeedsReconcile {
		t.Error("ambiguous payout outcome must be flagged for reconciliation")
	}

	// A fresh attempt for the same purchase is allowed once the prior one
	// failed; reconciliation happens out of band.
	if _, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000))); !errors.Is(err, clawback.ErrPayoutFailed) {
		t.Fatalf("retry after failure: expected ErrPayoutFailed again, got %v", err)
	}
}

func TestRefundNoBackendConfigured(t *testing.T) {
	eng := newTestEngine(t) // no payout backend registered
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))

	_, err := eng.RequestRefund(ctx, unlockRefund("creator-1", "buy-1", types.USD(2000)))
	if !errors.Is(err, clawback.ErrBackendNotConfigured) {
		t.Fatalf("expected ErrBackendNotConfigured, got %v", err)
	}
}

func TestRefundCurrencyMismatch(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))

	req := unlockRefund("creator-1", "buy-1", types.USDC(2000))
	_, err := eng.RequestRefund(ctx, req)
	var verr clawback.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for currency mismatch, got %v", err)
	}
}

func TestConcurrentRefundsNeverOverdraw(t *testing.T) {
	backend := &stubBackend{delay: 50 * time.Millisecond}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	// Balance covers exactly one of the two refunds.
	fundCreator(t, eng, "creator-1", types.USD(3000))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, ref := range []string{"buy-a", "buy-b"} {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_, err := eng.RequestRefund(ctx, unlockRefund("creator-1", ref, types.USD(3000)))
			errs <- err
		}(ref)
	}
	wg.Wait()
	close(errs)

	var won, rejected int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, clawback.ErrInsufficientBalance):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || rejected != 1 {
		t.Fatalf("got %d completed, %d insufficient-balance rejections; want 1 and 1", won, rejected)
	}

	// The loser is rejected at authorization, before any external call:
	// funds must never be dispatched twice.
	if got := backend.callCount(); got != 1 {
		t.Fatalf("payout backend calls: got %d, want 1", got)
	}

	completed, err := eng.ListRefunds(ctx, "creator-1", refund.ListOpts{Status: refund.StatusCompleted})
	if err != nil {
		t.Fatalf("ListRefunds: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("completed refunds: got %d, want 1", len(completed))
	}

	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	// 3000 - 2940 net: the loser never debits.
	if !status.Balance.Equal(types.USD(60)) {
		t.Errorf("balance: got %v, want %v", status.Balance, types.USD(60))
	}
	if status.Balance.IsNegative() {
		t.Error("balance must never go negative")
	}
}

func TestConcurrentRefundsRespectDailyLimit(t *testing.T) {
	backend := &stubBackend{delay: 50 * time.Millisecond}
	eng := newTestEngine(t, clawback.WithBackend(backend), clawback.WithFeeRate(0))
	ctx := context.Background()

	fundCreator(t, eng, "creator-1", types.USD(10000))
	limit := types.USD(3000)
	if _, err := eng.UpdateLedgerSettings(ctx, "creator-1", ledger.SettingsChange{DailyLimit: &limit}); err != nil {
		t.Fatalf("UpdateLedgerSettings: %v", err)
	}

	// Two $20 refunds against a $30 cap: either alone fits, together
	// they exceed it. Exactly one may be authorized.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, ref := range []string{"buy-a", "buy-b"} {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_, err := eng.RequestRefund(ctx, unlockRefund("creator-1", ref, types.USD(2000)))
			errs <- err
		}(ref)
	}
	wg.Wait()
	close(errs)

	var won, capped int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, clawback.ErrDailyLimitExceeded):
			capped++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || capped != 1 {
		t.Fatalf("got %d completed, %d daily-limit rejections; want 1 and 1", won, capped)
	}
	if got := backend.callCount(); got != 1 {
		t.Fatalf("payout backend calls: got %d, want 1", got)
	}

	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if status.SpentToday.GreaterThan(limit) {
		t.Errorf("spent today %v exceeds daily limit %v", status.SpentToday, limit)
	}
	if !status.SpentToday.Equal(types.USD(2000)) {
		t.Errorf("spent today: got %v, want %v", status.SpentToday, types.USD(2000))
	}
}

func TestZeroDailyLimitMeansUncapped(t *testing.T) {
	backend := &stubBackend{}
	eng := newTestEngine(t, clawback.WithBackend(backend), clawback.WithFeeRate(0))
	ctx := context.Background()

	// fundCreator never sets a daily limit; it stays zero.
	fundCreator(t, eng, "creator-1", types.USD(10000))

	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if !status.DailyLimit.IsZero() {
		t.Fatalf("daily limit: got %v, want zero", status.DailyLimit)
	}

	// Refunds of any size pass the cap; only the balance gates them.
	for i, amount := range []types.Money{types.USD(6000), types.USD(4000)} {
		rec, err := eng.RequestRefund(ctx, unlockRefund("creator-1", fmt.Sprintf("buy-%d", i), amount))
		if err != nil {
			t.Fatalf("RequestRefund %v: %v", amount, err)
		}
		if rec.Status != refund.StatusCompleted {
			t.Fatalf("status: got %s, want %s", rec.Status, refund.StatusCompleted)
		}
	}

	status, err = eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if !status.SpentToday.Equal(types.USD(10000)) {
		t.Errorf("spent today: got %v, want %v", status.SpentToday, types.USD(10000))
	}
}

func TestRefundValidation(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	base := unlockRefund("creator-1", "buy-1", types.USD(1000))

	tests := []struct {
		name   string
		mutate func(*clawback.RefundRequest)
	}{
		{"missing creator", func(r *clawback.RefundRequest) { r.CreatorID = "" }},
		{"missing buyer", func(r *clawback.RefundRequest) { r.BuyerAddress = "" }},
		{"missing tx ref", func(r *clawback.RefundRequest) { r.OriginalTxRef = "" }},
		{"missing kind", func(r *clawback.RefundRequest) { r.Kind = "" }},
		{"zero amount", func(r *clawback.RefundRequest) { r.OriginalAmount = types.USD(0) }},
		{"unlock without post", func(r *clawback.RefundRequest) { r.PostID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := eng.RequestRefund(ctx, req)
			var verr clawback.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Access evaluation
// ──────────────────────────────────────────────────

func TestCheckAccessPrecedence(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	paid := clawback.Post{ID: "post-1", CreatorID: "creator-1", Price: types.USD(500)}
	free := clawback.Post{ID: "post-free", CreatorID: "creator-1", Price: types.USD(0)}

	future := time.Now().UTC().Add(24 * time.Hour)
	past := time.Now().UTC().Add(-24 * time.Hour)

	t.Run("free post grants everyone", func(t *testing.T) {
		access, err := eng.CheckAccess(ctx, free, "0xanyone")
		if err != nil {
			t.Fatal(err)
		}
		if !access.Granted || access.Reason != entitlement.ReasonFree {
			t.Errorf("got %v/%s, want granted/free", access.Granted, access.Reason)
		}
	})

	t.Run("no grants means locked", func(t *testing.T) {
		access, err := eng.CheckAccess(ctx, paid, "0xstranger")
		if err != nil {
			t.Fatal(err)
		}
		if access.Granted || access.Reason != entitlement.ReasonLocked {
			t.Errorf("got %v/%s, want denied/locked", access.Granted, access.Reason)
		}
	})

	t.Run("unlock wins over subscription", func(t *testing.T) {
		buyer := "0xunlocker"
		mustGrant(t, eng, entitlement.KindUnlock, "post-1", buyer, nil)
		mustGrant(t, eng, entitlement.KindSubscription, "creator-1", buyer, &future)

		access, err := eng.CheckAccess(ctx, paid, buyer)
		if err != nil {
			t.Fatal(err)
		}
		if access.Reason != entitlement.ReasonUnlocked {
			t.Errorf("reason: got %s, want unlocked", access.Reason)
		}
	})

	t.Run("active subscription", func(t *testing.T) {
		buyer := "0xsubscriber"
		mustGrant(t, eng, entitlement.KindSubscription, "creator-1", buyer, &future)

		access, err := eng.CheckAccess(ctx, paid, buyer)
		if err != nil {
			t.Fatal(err)
		}
		if access.Reason != entitlement.ReasonSubscription {
			t.Errorf("reason: got %s, want subscription", access.Reason)
		}
	})

	t.Run("expired subscription falls through to recurring tip", func(t *testing.T) {
		buyer := "0xtipper"
		mustGrant(t, eng, entitlement.KindSubscription, "creator-1", buyer, &past)
		mustGrant(t, eng, entitlement.KindRecurringTip, "creator-1", buyer, &future)

		access, err := eng.CheckAccess(ctx, paid, buyer)
		if err != nil {
			t.Fatal(err)
		}
		if access.Reason != entitlement.ReasonRecurringTip {
			t.Errorf("reason: got %s, want recurring_tip", access.Reason)
		}
	})

	t.Run("all grants expired means locked", func(t *testing.T) {
		buyer := "0xlapsed"
		mustGrant(t, eng, entitlement.KindSubscription, "creator-1", buyer, &past)
		mustGrant(t, eng, entitlement.KindRecurringTip, "creator-1", buyer, &past)

		access, err := eng.CheckAccess(ctx, paid, buyer)
		if err != nil {
			t.Fatal(err)
		}
		if access.Granted || access.Reason != entitlement.ReasonLocked {
			t.Errorf("got %v/%s, want denied/locked", access.Granted, access.Reason)
		}
	})
}

func mustGrant(t *testing.T, eng *clawback.Engine, kind entitlement.Kind, subjectID, buyer string, until *time.Time) {
	t.Helper()
	if err := eng.Grant(context.Background(), &entitlement.Grant{
		Kind:        kind,
		Buyer:       buyer,
		SubjectID:   subjectID,
		ActiveUntil: until,
	}); err != nil {
		t.Fatalf("Grant(%s, %s): %v", kind, subjectID, err)
	}
}

func TestGrantRevokeList(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	mustGrant(t, eng, entitlement.KindUnlock, "post-1", "0xbuyer", nil)
	mustGrant(t, eng, entitlement.KindUnlock, "post-2", "0xbuyer", nil)

	grants, err := eng.ListGrants(ctx, "0xbuyer", entitlement.ListOpts{})
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("grants: got %d, want 2", len(grants))
	}
	for _, g := range grants {
		if g.ID.IsNil() {
			t.Error("expected assigned grant ID")
		}
	}

	if err := eng.Revoke(ctx, entitlement.KindUnlock, "post-1", "0xbuyer"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	grants, err = eng.ListGrants(ctx, "0xbuyer", entitlement.ListOpts{})
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 1 {
		t.Errorf("grants after revoke: got %d, want 1", len(grants))
	}

	// Revoking a missing grant is not an error.
	if err := eng.Revoke(ctx, entitlement.KindUnlock, "post-gone", "0xbuyer"); err != nil {
		t.Errorf("Revoke missing: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Settings and status
// ──────────────────────────────────────────────────

func TestUpdateLedgerSettings(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))
	ctx := context.Background()

	// Settings before any deposit create a zero-balance ledger.
	enabled := true
	limit := types.USD(5000)
	l, err := eng.UpdateLedgerSettings(ctx, "creator-1", ledger.SettingsChange{
		RefundsEnabled: &enabled,
		DailyLimit:     &limit,
	})
	if err != nil {
		t.Fatalf("UpdateLedgerSettings: %v", err)
	}
	if !l.RefundsEnabled {
		t.Error("expected refunds enabled")
	}
	if !l.DailyLimit.Equal(limit) {
		t.Errorf("daily limit: got %v, want %v", l.DailyLimit, limit)
	}
	if !l.Balance.IsZero() {
		t.Errorf("balance: got %v, want zero", l.Balance)
	}

	// Partial update leaves the rest untouched.
	provider := "crossmint"
	l, err = eng.UpdateLedgerSettings(ctx, "creator-1", ledger.SettingsChange{WalletProvider: &provider})
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if l.WalletProvider != "crossmint" {
		t.Errorf("wallet provider: got %s", l.WalletProvider)
	}
	if !l.RefundsEnabled || !l.DailyLimit.Equal(limit) {
		t.Error("partial update clobbered unrelated settings")
	}

	// Negative daily limit is rejected.
	negative := types.USD(-1)
	_, err = eng.UpdateLedgerSettings(ctx, "creator-1", ledger.SettingsChange{DailyLimit: &negative})
	var verr clawback.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestLedgerStatusNotFound(t *testing.T) {
	eng := newTestEngine(t, clawback.WithBackend(&stubBackend{}))

	_, err := eng.LedgerStatus(context.Background(), "ghost")
	if !clawback.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Wallet provisioning
// ──────────────────────────────────────────────────

func TestInitializeWallet(t *testing.T) {
	backend := &walletStub{stubBackend: stubBackend{name: "crossmint"}}
	eng := newTestEngine(t, clawback.WithBackend(backend))
	ctx := context.Background()

	if err := eng.InitializeWallet(ctx, "creator-1", "crossmint"); err != nil {
		t.Fatalf("InitializeWallet: %v", err)
	}
	if len(backend.provisioned) != 1 || backend.provisioned[0] != "creator-1" {
		t.Errorf("provisioned: got %v", backend.provisioned)
	}

	status, err := eng.LedgerStatus(ctx, "creator-1")
	if err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
	if status.WalletProvider != "crossmint" {
		t.Errorf("wallet provider: got %s, want crossmint", status.WalletProvider)
	}

	// Unknown provider.
	if err := eng.InitializeWallet(ctx, "creator-1", "nope"); !errors.Is(err, clawback.ErrBackendNotConfigured) {
		t.Errorf("expected ErrBackendNotConfigured, got %v", err)
	}

	// A backend without provisioning support.
	plain := &stubBackend{name: "plain"}
	eng2 := newTestEngine(t, clawback.WithBackend(plain))
	if err := eng2.InitializeWallet(ctx, "creator-1", "plain"); !errors.Is(err, clawback.ErrBackendNotConfigured) {
		t.Errorf("expected ErrBackendNotConfigured for non-provisioning backend, got %v", err)
	}
}
