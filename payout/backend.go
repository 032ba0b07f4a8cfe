// Package payout defines the custodial wallet backend interface the
// refund engine pays buyers through, and a registry of named backends.
//
// The engine is written against Backend only. Providers differ in
// authentication, wire formats and error shapes; none of that may leak
// past Result.
package payout

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/clawback/types"
)

// Request describes one transfer to a buyer address.
type Request struct {
	BuyerAddress string      `json:"buyer_address"`
	Amount       types.Money `json:"amount"`
	ChainID      string      `json:"chain_id"`

	// IdempotencyKey is the refund ID; providers that support
	// idempotency keys use it to suppress duplicate transfers.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Result is the normalized outcome of a payout attempt. A false Success
// is terminal for that attempt: the engine records the failure and
// never retries automatically, because a payout whose success is
// unconfirmed must not be blindly re-sent.
type Result struct {
	Success       bool   `json:"success"`
	ExternalTxRef string `json:"external_tx_ref,omitempty"`
	ProviderError string `json:"provider_error,omitempty"`
}

// Backend sends funds to a buyer address via a custodial wallet
// provider. The call may block for an unbounded external round trip and
// is not cancellable once issued; implementations must return a
// definitive Result or a transport error, never silently drop.
type Backend interface {
	// Name identifies the provider ("crossmint", "privy", ...).
	Name() string

	// Payout transfers amount to the buyer address. A nil error with
	// Success=false means the provider definitively declined; a non-nil
	// error means the outcome is ambiguous (timeout, transport failure)
	// and needs operator reconciliation before any retry.
	Payout(ctx context.Context, req Request) (*Result, error)
}

// BalanceProvider is an optional capability: custodial balance lookup
// for a creator's provisioned wallet. Setup-time only, outside the
// refund hot path.
type BalanceProvider interface {
	Backend
	Balance(ctx context.Context, creatorID string) (types.Money, error)
}

// WalletInitializer is an optional capability: provisioning a custodial
// wallet for a creator.
type WalletInitializer interface {
	Backend
	InitializeWallet(ctx context.Context, creatorID string) error
}

// Registry holds named backends and resolves the one a creator's
// ledger selects.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	fallback string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under its Name. The first registered backend
// becomes the default unless SetDefault is called.
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := b.Name()
	if name == "" {
		return fmt.Errorf("payout: backend has empty name")
	}
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("payout: duplicate backend registration: %s", name)
	}
	r.backends[name] = b
	if r.fallback == "" {
		r.fallback = name
	}
	return nil
}

// SetDefault selects the backend used for creators with no provider
// configured.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("payout: unknown backend %q", name)
	}
	r.fallback = name
	return nil
}

// Resolve returns the backend for the given provider name, falling back
// to the default for an empty name. Returns nil if nothing matches.
func (r *Registry) Resolve(name string) Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.fallback
	}
	return r.backends[name]
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
