package clawback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/payout"
	"github.com/xraph/clawback/plugin"
	"github.com/xraph/clawback/refund"
	"github.com/xraph/clawback/store"
	"github.com/xraph/clawback/types"
)

// Engine is the refund ledger and entitlement engine.
type Engine struct {
	store    store.Store
	backends *payout.Registry
	plugins  *plugin.Registry
	logger   *slog.Logger

	// Configuration
	feeRateBps   int64
	defaultChain string

	// Per-creator serialization of ledger mutations. Never held across
	// the external payout call.
	creatorMu sync.Mutex
	creators  map[string]*sync.Mutex

	// Background workers
	revokeQueue    chan revocationTask
	revokeInterval time.Duration
	revokeAttempts int
	stopChan       chan struct{}
	wg             sync.WaitGroup

	skipMigrate bool
}

// revocationTask is a pending entitlement revocation retry.
type revocationTask struct {
	kind      entitlement.Kind
	subjectID string
	buyer     string
	attempts  int
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		backends:       payout.NewRegistry(),
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		feeRateBps:     200, // 2%
		defaultChain:   "base",
		creators:       make(map[string]*sync.Mutex),
		revokeQueue:    make(chan revocationTask, 1024),
		revokeInterval: 5 * time.Second,
		revokeAttempts: 5,
		stopChan:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithFeeRate sets the platform fee rate in basis points.
func WithFeeRate(bps int64) Option {
	return func(e *Engine) {
		e.feeRateBps = bps
	}
}

// WithDefaultChain sets the chain used when a refund request names none.
func WithDefaultChain(chainID string) Option {
	return func(e *Engine) {
		e.defaultChain = chainID
	}
}

// WithBackend registers a payout backend.
func WithBackend(b payout.Backend) Option {
	return func(e *Engine) {
		if err := e.backends.Register(b); err != nil {
			e.logger.Warn("payout backend registration failed", "error", err)
		}
	}
}

// WithDefaultBackend selects the payout backend used for creators with
// no wallet provider configured.
func WithDefaultBackend(name string) Option {
	return func(e *Engine) {
		if err := e.backends.SetDefault(name); err != nil {
			e.logger.Warn("default payout backend selection failed", "error", err)
		}
	}
}

// WithoutMigration skips schema migration during Start. Use when the
// schema is managed externally.
func WithoutMigration() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithRevocationRetry configures the revocation retry worker.
func WithRevocationRetry(interval time.Duration, maxAttempts int) Option {
	return func(e *Engine) {
		e.revokeInterval = interval
		e.revokeAttempts = maxAttempts
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Adopt payout backends contributed by plugins
	for _, p := range e.plugins.GetPayoutBackends() {
		b, ok := p.Backend().(payout.Backend)
		if !ok {
			e.logger.Warn("plugin backend has wrong type", "plugin", p.Name())
			continue
		}
		if err := e.backends.Register(b); err != nil {
			e.logger.Warn("plugin backend registration failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start revocation retry worker
	e.wg.Add(1)
	go e.revocationWorker(ctx)

	e.logger.Info("clawback started",
		"fee_rate_bps", e.feeRateBps,
		"default_chain", e.defaultChain,
		"backends", e.backends.Names(),
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Deposits
// ──────────────────────────────────────────────────

// RecordDeposit records a confirmed on-chain deposit and credits the
// creator's refund balance. The external transaction reference is the
// idempotency key: a repeat delivery returns ErrDuplicateDeposit and
// credits nothing.
func (e *Engine) RecordDeposit(ctx context.Context, creatorID string, amount types.Money, externalTxRef string) (*deposit.Deposit, error) {
	if creatorID == "" {
		return nil, ValidationError{Field: "creator_id", Message: "required"}
	}
	if externalTxRef == "" {
		return nil, ValidationError{Field: "external_tx_ref", Message: "required"}
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	dep := &deposit.Deposit{
		Entity:        types.NewEntity(),
		ID:            id.NewDepositID(),
		CreatorID:     creatorID,
		Amount:        amount,
		ExternalTxRef: externalTxRef,
		Status:        deposit.StatusConfirmed,
	}

	// Insert first: the uniqueness constraint on the reference is the
	// dedup source of truth, so a crash between insert and credit
	// surfaces as a duplicate on retry instead of a double credit.
	if err := e.store.CreateDeposit(ctx, dep); err != nil {
		return nil, err
	}

	mu := e.creatorLock(creatorID)
	mu.Lock()
	newBalance, err := e.store.Credit(ctx, creatorID, amount)
	mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("credit after deposit %s: %w", externalTxRef, err)
	}

	e.logger.Info("deposit recorded",
		"creator_id", creatorID,
		"amount", amount.String(),
		"external_tx_ref", externalTxRef,
		"balance", newBalance.String(),
	)

	e.plugins.EmitDepositRecorded(ctx, dep)
	e.plugins.EmitLedgerCredited(ctx, creatorID, amount, newBalance)
	return dep, nil
}

// ListDeposits lists deposits for a creator, newest first.
func (e *Engine) ListDeposits(ctx context.Context, creatorID string, opts deposit.ListOpts) ([]*deposit.Deposit, error) {
	return e.store.ListDeposits(ctx, creatorID, opts)
}

// ──────────────────────────────────────────────────
// Refunds
// ──────────────────────────────────────────────────

// RefundRequest carries the commerce-layer facts needed to refund one
// original purchase.
type RefundRequest struct {
	CreatorID      string      `json:"creator_id"`
	BuyerAddress   string      `json:"buyer_address"`
	OriginalTxRef  string      `json:"original_tx_ref"`
	Kind           refund.Kind `json:"kind"`
	OriginalAmount types.Money `json:"original_amount"`

	// PostID identifies the unlocked post for unlock refunds.
	PostID string `json:"post_id,omitempty"`

	// ChainID overrides the engine default chain for the payout.
	ChainID string `json:"chain_id,omitempty"`
}

// RequestRefund runs one refund attempt through the state machine:
// eligibility, durable processing record, external payout, then ledger
// settlement and entitlement revocation.
//
// Tips and recurring tips are rejected outright with no record.
// Eligibility rejections persist a rejected record for audit and return
// the specific sentinel. A payout failure is terminal for this attempt;
// a retry is a fresh request.
func (e *Engine) RequestRefund(ctx context.Context, req RefundRequest) (*refund.Refund, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !req.Kind.Refundable() {
		return nil, ErrTipNotRefundable
	}

	fee, net := req.OriginalAmount.SplitFee(e.feeRateBps)

	chainID := req.ChainID
	if chainID == "" {
		chainID = e.defaultChain
	}

	rec := &refund.Refund{
		Entity:         types.NewEntity(),
		ID:             id.NewRefundID(),
		CreatorID:      req.CreatorID,
		BuyerAddress:   req.BuyerAddress,
		OriginalTxRef:  req.OriginalTxRef,
		Kind:           req.Kind,
		PostID:         req.PostID,
		ChainID:        chainID,
		OriginalAmount: req.OriginalAmount,
		FeeAmount:      fee,
		RefundAmount:   net,
		Status:         refund.StatusProcessing,
	}

	// Eligibility and the processing record are decided under the
	// per-creator lock so concurrent requests see each other's records
	// and at most one reaches processing per original transaction.
	mu := e.creatorLock(req.CreatorID)
	mu.Lock()

	if existing, err := e.store.GetActiveRefundByRef(ctx, req.OriginalTxRef); err == nil {
		mu.Unlock()
		return existing, ErrAlreadyProcessed
	} else if !IsNotFound(err) {
		mu.Unlock()
		return nil, err
	}

	l, err := e.store.GetLedger(ctx, req.CreatorID)
	if err != nil {
		if IsNotFound(err) {
			return e.rejectLocked(ctx, mu, rec, "creator has no refund ledger", ErrRefundsDisabled)
		}
		mu.Unlock()
		return nil, err
	}
	if l.Balance.Currency != net.Currency {
		mu.Unlock()
		return nil, ValidationError{Field: "original_amount", Message: "currency does not match creator ledger"}
	}
	if !l.RefundsEnabled {
		return e.rejectLocked(ctx, mu, rec, "refunds disabled for creator", ErrRefundsDisabled)
	}

	// Authorized refunds that have not reached a terminal state hold a
	// claim on the balance and the daily counter until the payout
	// settles. Reserve them here, otherwise two concurrent requests
	// would each pass eligibility against the same funds and both
	// dispatch a payout.
	inflight, err := e.store.ListRefunds(ctx, req.CreatorID, refund.ListOpts{Status: refund.StatusProcessing})
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	var reserved int64
	for _, p := range inflight {
		reserved += p.RefundAmount.Amount
	}

	available := types.Money{Amount: l.Balance.Amount - reserved, Currency: l.Balance.Currency}
	if available.LessThan(net) {
		return e.rejectLocked(ctx, mu, rec, "insufficient refund balance", ErrInsufficientBalance)
	}
	// A zero DailyLimit means uncapped.
	if l.DailyLimit.IsPositive() {
		spent, serr := e.store.SpentToday(ctx, req.CreatorID, ledger.Today())
		if serr != nil {
			mu.Unlock()
			return nil, serr
		}
		projected := types.Money{Amount: spent.Amount + reserved + net.Amount, Currency: l.DailyLimit.Currency}
		if projected.GreaterThan(l.DailyLimit) {
			return e.rejectLocked(ctx, mu, rec, "daily refund limit exceeded", ErrDailyLimitExceeded)
		}
	}

	backend := e.backends.Resolve(l.WalletProvider)
	if backend == nil {
		mu.Unlock()
		return nil, ErrBackendNotConfigured
	}
	rec.PayoutBackend = backend.Name()

	if err := e.store.CreateRefund(ctx, rec); err != nil {
		mu.Unlock()
		return nil, err
	}
	mu.Unlock()

	e.plugins.EmitRefundAuthorized(ctx, rec)
	e.logger.Info("refund authorized",
		"refund_id", rec.ID.String(),
		"creator_id", rec.CreatorID,
		"kind", string(rec.Kind),
		"refund_amount", net.String(),
		"backend", rec.PayoutBackend,
	)

	// The external payout happens with no lock held: it may block for an
	// unbounded round trip and must not serialize unrelated refunds.
	result, payoutErr := backend.Payout(ctx, payout.Request{
		BuyerAddress:   req.BuyerAddress,
		Amount:         net,
		ChainID:        chainID,
		IdempotencyKey: rec.ID.String(),
	})
	if payoutErr != nil {
		// Ambiguous outcome: the transfer may have gone through. Never
		// auto-retry; surface for manual reconciliation.
		return e.failRefund(ctx, rec, payoutErr.Error(), true, payoutErr)
	}
	if !result.Success {
		return e.failRefund(ctx, rec, result.ProviderError, false, nil)
	}
	rec.PayoutTxRef = result.ExternalTxRef

	// Payout confirmed. Settle the ledger under the creator lock, in
	// fixed order: debit, daily counter, revocation, terminal status.
	mu.Lock()
	newBalance, err := e.store.Debit(ctx, req.CreatorID, net)
	if err != nil {
		mu.Unlock()
		// Money already moved; the ledger could not be settled.
		return e.reconcileRefund(ctx, rec, err)
	}
	total, err := e.store.AddSpentToday(ctx, req.CreatorID, ledger.Today(), net)
	mu.Unlock()
	if err != nil {
		e.logger.Error("daily spend counter not settled",
			"refund_id", rec.ID.String(),
			"creator_id", req.CreatorID,
			"error", err,
		)
		rec.NeedsReconcile = true
		e.plugins.EmitReconciliationNeeded(ctx, rec)
	}

	e.plugins.EmitLedgerDebited(ctx, req.CreatorID, net, newBalance)

	e.revokeForRefund(ctx, rec)

	now := time.Now().UTC()
	rec.Status = refund.StatusCompleted
	rec.CompletedAt = &now
	if err := e.store.UpdateRefund(ctx, rec); err != nil {
		// Payout and debit are done; only the terminal status write
		// failed. Reconciliation item, not a rollback.
		e.logger.Error("refund completion not persisted",
			"refund_id", rec.ID.String(),
			"error", err,
		)
		rec.NeedsReconcile = true
		e.plugins.EmitReconciliationNeeded(ctx, rec)
		return rec, fmt.Errorf("persist refund completion: %w", err)
	}

	e.logger.Info("refund completed",
		"refund_id", rec.ID.String(),
		"creator_id", req.CreatorID,
		"payout_tx_ref", rec.PayoutTxRef,
		"balance", newBalance.String(),
		"spent_today", total.String(),
	)

	e.plugins.EmitRefundCompleted(ctx, rec)
	return rec, nil
}

// rejectLocked persists an eligibility rejection for audit, releases
// the creator lock and returns the specific sentinel.
func (e *Engine) rejectLocked(ctx context.Context, mu *sync.Mutex, rec *refund.Refund, reason string, sentinel error) (*refund.Refund, error) {
	rec.Status = refund.StatusRejected
	rec.Reason = reason
	err := e.store.CreateRefund(ctx, rec)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.logger.Info("refund rejected",
		"refund_id", rec.ID.String(),
		"creator_id", rec.CreatorID,
		"reason", reason,
	)
	e.plugins.EmitRefundRejected(ctx, rec, reason)
	return rec, sentinel
}

// failRefund marks the refund failed after a payout decline or an
// ambiguous provider error. No ledger or entitlement mutation.
func (e *Engine) failRefund(ctx context.Context, rec *refund.Refund, reason string, reconcile bool, cause error) (*refund.Refund, error) {
	rec.Status = refund.StatusFailed
	rec.Reason = reason
	rec.NeedsReconcile = reconcile
	if err := e.store.UpdateRefund(ctx, rec); err != nil {
		e.logger.Error("refund failure not persisted",
			"refund_id", rec.ID.String(),
			"error", err,
		)
	}

	e.logger.Warn("refund failed",
		"refund_id", rec.ID.String(),
		"creator_id", rec.CreatorID,
		"reason", reason,
		"needs_reconcile", reconcile,
	)
	e.plugins.EmitRefundFailed(ctx, rec, cause)
	if reconcile {
		e.plugins.EmitReconciliationNeeded(ctx, rec)
	}

	if cause != nil {
		return rec, fmt.Errorf("%w: %v", ErrPayoutFailed, cause)
	}
	return rec, fmt.Errorf("%w: %s", ErrPayoutFailed, reason)
}

// reconcileRefund handles the worst case: payout confirmed but the
// ledger debit failed. The money has moved; the record is marked for
// manual reconciliation and nothing is retried.
func (e *Engine) reconcileRefund(ctx context.Context, rec *refund.Refund, cause error) (*refund.Refund, error) {
	rec.Status = refund.StatusFailed
	rec.Reason = "payout confirmed but ledger not settled: " + cause.Error()
	rec.NeedsReconcile = true
	if err := e.store.UpdateRefund(ctx, rec); err != nil {
		e.logger.Error("reconciliation record not persisted",
			"refund_id", rec.ID.String(),
			"error", err,
		)
	}

	e.logger.Error("refund needs reconciliation",
		"refund_id", rec.ID.String(),
		"creator_id", rec.CreatorID,
		"payout_tx_ref", rec.PayoutTxRef,
		"error", cause,
	)
	e.plugins.EmitReconciliationNeeded(ctx, rec)
	return rec, ErrReconcileRequired
}

// revokeForRefund revokes the entitlement matching a completed refund.
// Best-effort: a failure is logged and queued for retry, never rolled
// back into the payout.
func (e *Engine) revokeForRefund(ctx context.Context, rec *refund.Refund) {
	var kind entitlement.Kind
	var subjectID string
	switch rec.Kind {
	case refund.KindUnlock:
		kind, subjectID = entitlement.KindUnlock, rec.PostID
	case refund.KindSubscription:
		kind, subjectID = entitlement.KindSubscription, rec.CreatorID
	default:
		return
	}

	if err := e.store.RevokeGrant(ctx, kind, subjectID, rec.BuyerAddress); err != nil {
		e.logger.Warn("entitlement revocation failed, queued for retry",
			"refund_id", rec.ID.String(),
			"kind", string(kind),
			"subject_id", subjectID,
			"error", err,
		)
		e.plugins.EmitRevocationFailed(ctx, string(kind), subjectID, rec.BuyerAddress, err)
		e.enqueueRevocation(revocationTask{kind: kind, subjectID: subjectID, buyer: rec.BuyerAddress, attempts: 1})
		return
	}
	e.plugins.EmitEntitlementRevoked(ctx, string(kind), subjectID, rec.BuyerAddress)
}

func (req RefundRequest) validate() error {
	if req.CreatorID == "" {
		return ValidationError{Field: "creator_id", Message: "required"}
	}
	if req.BuyerAddress == "" {
		return ValidationError{Field: "buyer_address", Message: "required"}
	}
	if req.OriginalTxRef == "" {
		return ValidationError{Field: "original_tx_ref", Message: "required"}
	}
	if req.Kind == "" {
		return ValidationError{Field: "kind", Message: "required"}
	}
	if !req.OriginalAmount.IsPositive() {
		return ValidationError{Field: "original_amount", Message: "must be positive"}
	}
	if req.Kind == refund.KindUnlock && req.PostID == "" {
		return ValidationError{Field: "post_id", Message: "required for unlock refunds"}
	}
	return nil
}

// GetRefund retrieves a refund by ID.
func (e *Engine) GetRefund(ctx context.Context, refundID id.RefundID) (*refund.Refund, error) {
	return e.store.GetRefund(ctx, refundID)
}

// ListRefunds lists refunds for a creator, newest first.
func (e *Engine) ListRefunds(ctx context.Context, creatorID string, opts refund.ListOpts) ([]*refund.Refund, error) {
	return e.store.ListRefunds(ctx, creatorID, opts)
}

// ──────────────────────────────────────────────────
// Access evaluation
// ──────────────────────────────────────────────────

// Post carries the content facts the access evaluator needs.
type Post struct {
	ID        string      `json:"id"`
	CreatorID string      `json:"creator_id"`
	Price     types.Money `json:"price"`
}

// CheckAccess evaluates whether a buyer can view a post. Precedence,
// first match wins: free, unlocked, subscription, recurring tip,
// locked. Activity is evaluated at time of check.
func (e *Engine) CheckAccess(ctx context.Context, post Post, buyer string) (*entitlement.Access, error) {
	if post.ID == "" {
		return nil, ValidationError{Field: "post.id", Message: "required"}
	}
	if buyer == "" {
		return nil, ValidationError{Field: "buyer", Message: "required"}
	}

	access, err := e.evaluateAccess(ctx, post, buyer)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitAccessChecked(ctx, buyer, access)
	return access, nil
}

func (e *Engine) evaluateAccess(ctx context.Context, post Post, buyer string) (*entitlement.Access, error) {
	if post.Price.IsZero() {
		return &entitlement.Access{Granted: true, Reason: entitlement.ReasonFree}, nil
	}

	if _, err := e.store.GetGrant(ctx, entitlement.KindUnlock, post.ID, buyer); err == nil {
		return &entitlement.Access{Granted: true, Reason: entitlement.ReasonUnlocked}, nil
	} else if !IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()

	if g, err := e.store.GetGrant(ctx, entitlement.KindSubscription, post.CreatorID, buyer); err == nil {
		if g.ActiveAt(now) {
			return &entitlement.Access{Granted: true, Reason: entitlement.ReasonSubscription}, nil
		}
	} else if !IsNotFound(err) {
		return nil, err
	}

	if g, err := e.store.GetGrant(ctx, entitlement.KindRecurringTip, post.CreatorID, buyer); err == nil {
		if g.ActiveAt(now) {
			return &entitlement.Access{Granted: true, Reason: entitlement.ReasonRecurringTip}, nil
		}
	} else if !IsNotFound(err) {
		return nil, err
	}

	return &entitlement.Access{Granted: false, Reason: entitlement.ReasonLocked}, nil
}

// ──────────────────────────────────────────────────
// Entitlement management
// ──────────────────────────────────────────────────

// Grant records a durable access grant. The commerce layer calls this
// on successful purchase; a fresh grant for the same (kind, subject,
// buyer) replaces the old one.
func (e *Engine) Grant(ctx context.Context, g *entitlement.Grant) error {
	if g.Buyer == "" {
		return ValidationError{Field: "buyer", Message: "required"}
	}
	if g.SubjectID == "" {
		return ValidationError{Field: "subject_id", Message: "required"}
	}
	if g.Kind == "" {
		return ValidationError{Field: "kind", Message: "required"}
	}

	if g.ID.IsNil() {
		g.ID = g.Kind.NewID()
	}
	g.Entity = types.NewEntity()

	return e.store.CreateGrant(ctx, g)
}

// Revoke removes a grant. A missing grant is not an error.
func (e *Engine) Revoke(ctx context.Context, kind entitlement.Kind, subjectID, buyer string) error {
	if err := e.store.RevokeGrant(ctx, kind, subjectID, buyer); err != nil {
		e.plugins.EmitRevocationFailed(ctx, string(kind), subjectID, buyer, err)
		return err
	}
	e.plugins.EmitEntitlementRevoked(ctx, string(kind), subjectID, buyer)
	return nil
}

// ListGrants lists a buyer's grants, newest first.
func (e *Engine) ListGrants(ctx context.Context, buyer string, opts entitlement.ListOpts) ([]*entitlement.Grant, error) {
	return e.store.ListGrants(ctx, buyer, opts)
}

// ──────────────────────────────────────────────────
// Ledger settings and status
// ──────────────────────────────────────────────────

// LedgerStatus is the operator view of a creator's refund funding.
type LedgerStatus struct {
	CreatorID      string      `json:"creator_id"`
	Balance        types.Money `json:"balance"`
	DailyLimit     types.Money `json:"daily_limit"`
	SpentToday     types.Money `json:"spent_today"`
	RefundsEnabled bool        `json:"refunds_enabled"`
	WalletProvider string      `json:"wallet_provider,omitempty"`
}

// LedgerStatus returns the current funding state for a creator.
func (e *Engine) LedgerStatus(ctx context.Context, creatorID string) (*LedgerStatus, error) {
	l, err := e.store.GetLedger(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	spent, err := e.store.SpentToday(ctx, creatorID, ledger.Today())
	if err != nil {
		return nil, err
	}

	return &LedgerStatus{
		CreatorID:      l.CreatorID,
		Balance:        l.Balance,
		DailyLimit:     l.DailyLimit,
		SpentToday:     spent,
		RefundsEnabled: l.RefundsEnabled,
		WalletProvider: l.WalletProvider,
	}, nil
}

// UpdateLedgerSettings applies a partial settings change. The balance
// is never touched here; it is owned by deposits and refunds.
func (e *Engine) UpdateLedgerSettings(ctx context.Context, creatorID string, change ledger.SettingsChange) (*ledger.CreatorLedger, error) {
	if creatorID == "" {
		return nil, ValidationError{Field: "creator_id", Message: "required"}
	}

	l, err := e.store.GetLedger(ctx, creatorID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		l = &ledger.CreatorLedger{
			Entity:     types.NewEntity(),
			CreatorID:  creatorID,
			Balance:    types.USD(0),
			DailyLimit: types.USD(0),
		}
	}

	if change.DailyLimit != nil {
		if change.DailyLimit.IsNegative() {
			return nil, ValidationError{Field: "daily_limit", Message: "must not be negative"}
		}
		l.DailyLimit = *change.DailyLimit
	}
	if change.RefundsEnabled != nil {
		l.RefundsEnabled = *change.RefundsEnabled
	}
	if change.WalletProvider != nil {
		l.WalletProvider = *change.WalletProvider
	}

	if err := e.store.UpsertLedger(ctx, l); err != nil {
		return nil, err
	}

	updated, err := e.store.GetLedger(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitSettingsUpdated(ctx, updated)
	return updated, nil
}

// ──────────────────────────────────────────────────
// Wallet provisioning
// ──────────────────────────────────────────────────

// InitializeWallet provisions a custodial wallet for the creator under
// the named provider and records the provider on the ledger. Setup-time
// only, outside the refund hot path.
func (e *Engine) InitializeWallet(ctx context.Context, creatorID, provider string) error {
	if creatorID == "" {
		return ValidationError{Field: "creator_id", Message: "required"}
	}

	b := e.backends.Resolve(provider)
	if b == nil {
		return ErrBackendNotConfigured
	}
	wi, ok := b.(payout.WalletInitializer)
	if !ok {
		return fmt.Errorf("%w: backend %q cannot provision wallets", ErrBackendNotConfigured, b.Name())
	}

	if err := wi.InitializeWallet(ctx, creatorID); err != nil {
		return fmt.Errorf("initialize wallet via %s: %w", b.Name(), err)
	}

	name := b.Name()
	_, err := e.UpdateLedgerSettings(ctx, creatorID, ledger.SettingsChange{WalletProvider: &name})
	return err
}

// ──────────────────────────────────────────────────
// Revocation retry worker
// ──────────────────────────────────────────────────

func (e *Engine) enqueueRevocation(task revocationTask) {
	select {
	case e.revokeQueue <- task:
	default:
		e.logger.Error("revocation retry queue full, task dropped",
			"kind", string(task.kind),
			"subject_id", task.subjectID,
			"buyer", task.buyer,
		)
	}
}

// revocationWorker retries failed entitlement revocations with bounded
// attempts. Lingering access after a completed refund is an accepted,
// logged inconsistency once attempts run out.
func (e *Engine) revocationWorker(ctx context.Context) {
	defer e.wg.Done()

	pending := make([]revocationTask, 0)
	ticker := time.NewTicker(e.revokeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Final attempt
			e.retryRevocations(ctx, pending)
			return

		case task := <-e.revokeQueue:
			pending = append(pending, task)

		case <-ticker.C:
			pending = e.retryRevocations(ctx, pending)
		}
	}
}

func (e *Engine) retryRevocations(ctx context.Context, pending []revocationTask) []revocationTask {
	remaining := pending[:0]
	for _, task := range pending {
		if err := e.store.RevokeGrant(ctx, task.kind, task.subjectID, task.buyer); err != nil {
			task.attempts++
			if task.attempts < e.revokeAttempts {
				remaining = append(remaining, task)
				continue
			}
			e.logger.Error("entitlement revocation abandoned",
				"kind", string(task.kind),
				"subject_id", task.subjectID,
				"buyer", task.buyer,
				"attempts", task.attempts,
				"error", err,
			)
			e.plugins.EmitRevocationFailed(ctx, string(task.kind), task.subjectID, task.buyer, err)
			continue
		}
		e.plugins.EmitEntitlementRevoked(ctx, string(task.kind), task.subjectID, task.buyer)
	}
	return remaining
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// creatorLock returns the mutex serializing ledger mutations for one
// creator, creating it on first use.
func (e *Engine) creatorLock(creatorID string) *sync.Mutex {
	e.creatorMu.Lock()
	defer e.creatorMu.Unlock()

	mu, ok := e.creators[creatorID]
	if !ok {
		mu = &sync.Mutex{}
		e.creators[creatorID] = mu
	}
	return mu
}
