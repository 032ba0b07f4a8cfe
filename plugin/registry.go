package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onDepositRecorded      []OnDepositRecorded
	onLedgerCredited       []OnLedgerCredited
	onLedgerDebited        []OnLedgerDebited
	onSettingsUpdated      []OnSettingsUpdated
	onRefundAuthorized     []OnRefundAuthorized
	onRefundCompleted      []OnRefundCompleted
	onRefundFailed         []OnRefundFailed
	onRefundRejected       []OnRefundRejected
	onReconciliationNeeded []OnReconciliationNeeded
	onAccessChecked        []OnAccessChecked
	onEntitlementRevoked   []OnEntitlementRevoked
	onRevocationFailed     []OnRevocationFailed
	payoutBackends         []PayoutBackendPlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnDepositRecorded); ok {
		r.onDepositRecorded = append(r.onDepositRecorded, v)
	}
	if v, ok := p.(OnLedgerCredited); ok {
		r.onLedgerCredited = append(r.onLedgerCredited, v)
	}
	if v, ok := p.(OnLedgerDebited); ok {
		r.onLedgerDebited = append(r.onLedgerDebited, v)
	}
	if v, ok := p.(OnSettingsUpdated); ok {
		r.onSettingsUpdated = append(r.onSettingsUpdated, v)
	}
	if v, ok := p.(OnRefundAuthorized); ok {
		r.onRefundAuthorized = append(r.onRefundAuthorized, v)
	}
	if v, ok := p.(OnRefundCompleted); ok {
		r.onRefundCompleted = append(r.onRefundCompleted, v)
	}
	if v, ok := p.(OnRefundFailed); ok {
		r.onRefundFailed = append(r.onRefundFailed, v)
	}
	if v, ok := p.(OnRefundRejected); ok {
		r.onRefundRejected = append(r.onRefundRejected, v)
	}
	if v, ok := p.(OnReconciliationNeeded); ok {
		r.onReconciliationNeeded = append(r.onReconciliationNeeded, v)
	}
	if v, ok := p.(OnAccessChecked); ok {
		r.onAccessChecked = append(r.onAccessChecked, v)
	}
	if v, ok := p.(OnEntitlementRevoked); ok {
		r.onEntitlementRevoked = append(r.onEntitlementRevoked, v)
	}
	if v, ok := p.(OnRevocationFailed); ok {
		r.onRevocationFailed = append(r.onRevocationFailed, v)
	}
	if v, ok := p.(PayoutBackendPlugin); ok {
		r.payoutBackends = append(r.payoutBackends, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnDepositRecorded)(nil)).Elem(), "OnDepositRecorded")
	checkInterface(reflect.TypeOf((*OnRefundAuthorized)(nil)).Elem(), "OnRefundAuthorized")
	checkInterface(reflect.TypeOf((*OnRefundCompleted)(nil)).Elem(), "OnRefundCompleted")
	checkInterface(reflect.TypeOf((*OnAccessChecked)(nil)).Elem(), "OnAccessChecked")
	checkInterface(reflect.TypeOf((*OnReconciliationNeeded)(nil)).Elem(), "OnReconciliationNeeded")
	checkInterface(reflect.TypeOf((*PayoutBackendPlugin)(nil)).Elem(), "PayoutBackend")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDepositRecorded emits a deposit recorded event.
func (r *Registry) EmitDepositRecorded(ctx context.Context, dep interface{}) {
	r.mu.RLock()
	plugins := r.onDepositRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDepositRecorded(ctx, dep)
		}); err != nil {
			r.logger.Warn("plugin OnDepositRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLedgerCredited emits a ledger credited event.
func (r *Registry) EmitLedgerCredited(ctx context.Context, creatorID string, amount, newBalance interface{}) {
	r.mu.RLock()
	plugins := r.onLedgerCredited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLedgerCredited(ctx, creatorID, amount, newBalance)
		}); err != nil {
			r.logger.Warn("plugin OnLedgerCredited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLedgerDebited emits a ledger debited event.
func (r *Registry) EmitLedgerDebited(ctx context.Context, creatorID string, amount, newBalance interface{}) {
	r.mu.RLock()
	plugins := r.onLedgerDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLedgerDebited(ctx, creatorID, amount, newBalance)
		}); err != nil {
			r.logger.Warn("plugin OnLedgerDebited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettingsUpdated emits a settings updated event.
func (r *Registry) EmitSettingsUpdated(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onSettingsUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettingsUpdated(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnSettingsUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRefundAuthorized emits a refund authorized event.
func (r *Registry) EmitRefundAuthorized(ctx context.Context, ref interface{}) {
	r.mu.RLock()
	plugins := r.onRefundAuthorized
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRefundAuthorized(ctx, ref)
		}); err != nil {
			r.logger.Warn("plugin OnRefundAuthorized failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRefundCompleted emits a refund completed event.
func (r *Registry) EmitRefundCompleted(ctx context.Context, ref interface{}) {
	r.mu.RLock()
	plugins := r.onRefundCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRefundCompleted(ctx, ref)
		}); err != nil {
			r.logger.Warn("plugin OnRefundCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRefundFailed emits a refund failed event.
func (r *Registry) EmitRefundFailed(ctx context.Context, ref interface{}, cause error) {
	r.mu.RLock()
	plugins := r.onRefundFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRefundFailed(ctx, ref, cause)
		}); err != nil {
			r.logger.Warn("plugin OnRefundFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRefundRejected emits a refund rejected event.
func (r *Registry) EmitRefundRejected(ctx context.Context, ref interface{}, reason string) {
	r.mu.RLock()
	plugins := r.onRefundRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRefundRejected(ctx, ref, reason)
		}); err != nil {
			r.logger.Warn("plugin OnRefundRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReconciliationNeeded emits a reconciliation needed event.
func (r *Registry) EmitReconciliationNeeded(ctx context.Context, ref interface{}) {
	r.mu.RLock()
	plugins := r.onReconciliationNeeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReconciliationNeeded(ctx, ref)
		}); err != nil {
			r.logger.Warn("plugin OnReconciliationNeeded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessChecked emits an access checked event.
func (r *Registry) EmitAccessChecked(ctx context.Context, buyer string, result interface{}) {
	r.mu.RLock()
	plugins := r.onAccessChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessChecked(ctx, buyer, result)
		}); err != nil {
			r.logger.Warn("plugin OnAccessChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntitlementRevoked emits an entitlement revoked event.
func (r *Registry) EmitEntitlementRevoked(ctx context.Context, kind, subjectID, buyer string) {
	r.mu.RLock()
	plugins := r.onEntitlementRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementRevoked(ctx, kind, subjectID, buyer)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementRevoked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRevocationFailed emits a revocation failed event.
func (r *Registry) EmitRevocationFailed(ctx context.Context, kind, subjectID, buyer string, cause error) {
	r.mu.RLock()
	plugins := r.onRevocationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRevocationFailed(ctx, kind, subjectID, buyer, cause)
		}); err != nil {
			r.logger.Warn("plugin OnRevocationFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetPayoutBackends returns all registered payout backend plugins.
func (r *Registry) GetPayoutBackends() []PayoutBackendPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PayoutBackendPlugin, len(r.payoutBackends))
	copy(result, r.payoutBackends)
	return result
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the refund pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
