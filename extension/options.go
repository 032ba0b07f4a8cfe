package extension

import (
	"time"

	clawback "github.com/xraph/clawback"
	"github.com/xraph/clawback/plugin"
	"github.com/xraph/clawback/store"
)

// Option configures the Clawback Forge extension.
type Option func(*Extension)

// WithStore sets the store for the refund engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a clawback.Option through to the underlying engine.
func WithEngineOption(opt clawback.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a clawback plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, clawback.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithFeeRate sets the platform fee rate in basis points.
func WithFeeRate(bps int64) Option {
	return func(e *Extension) { e.config.FeeRateBps = bps }
}

// WithDefaultChain sets the chain used when a refund request names none.
func WithDefaultChain(chainID string) Option {
	return func(e *Extension) { e.config.DefaultChain = chainID }
}

// WithDefaultBackend selects the payout backend used for creators with
// no wallet provider configured.
func WithDefaultBackend(name string) Option {
	return func(e *Extension) { e.config.DefaultBackend = name }
}

// WithRevocationRetry configures the revocation retry worker.
func WithRevocationRetry(interval time.Duration, maxAttempts int) Option {
	return func(e *Extension) {
		e.config.RevocationRetryInterval = interval
		e.config.RevocationMaxAttempts = maxAttempts
	}
}

// WithCrossmint configures the Crossmint payout backend from credentials.
func WithCrossmint(cfg CrossmintConfig) Option {
	return func(e *Extension) { e.config.Crossmint = cfg }
}

// WithPrivy configures the Privy payout backend from credentials.
func WithPrivy(cfg PrivyConfig) Option {
	return func(e *Extension) { e.config.Privy = cfg }
}
