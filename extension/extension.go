// Package extension provides the Forge extension adapter for Clawback.
//
// It implements the forge.Extension interface to integrate Clawback
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.clawback" or
// "clawback" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	clawback "github.com/xraph/clawback"
	"github.com/xraph/clawback/payout/crossmint"
	"github.com/xraph/clawback/payout/privy"
	"github.com/xraph/clawback/store"
	"github.com/xraph/clawback/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "clawback"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Refund ledger and entitlement engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Clawback as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *clawback.Engine
	store      store.Store
	engineOpts []clawback.Option
}

// New creates a new Clawback Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Clawback engine.
// This is nil until Register is called.
func (e *Extension) Engine() *clawback.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the refund engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := clawback.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*clawback.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("clawback: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("clawback: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs clawback.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []clawback.Option {
	opts := make([]clawback.Option, 0, len(e.engineOpts)+6)

	if e.config.DisableMigrate {
		opts = append(opts, clawback.WithoutMigration())
	}
	if e.config.FeeRateBps > 0 {
		opts = append(opts, clawback.WithFeeRate(e.config.FeeRateBps))
	}
	if e.config.DefaultChain != "" {
		opts = append(opts, clawback.WithDefaultChain(e.config.DefaultChain))
	}
	if e.config.RevocationRetryInterval > 0 && e.config.RevocationMaxAttempts > 0 {
		opts = append(opts, clawback.WithRevocationRetry(
			e.config.RevocationRetryInterval,
			e.config.RevocationMaxAttempts,
		))
	}

	// Construct payout backends from provider credentials.
	if e.config.Crossmint.APIKey != "" {
		var copts []crossmint.Option
		if e.config.Crossmint.BaseURL != "" {
			copts = append(copts, crossmint.WithBaseURL(e.config.Crossmint.BaseURL))
		}
		opts = append(opts, clawback.WithBackend(crossmint.New(e.config.Crossmint.APIKey, copts...)))
	}
	if e.config.Privy.AppID != "" && e.config.Privy.AppSecret != "" {
		var popts []privy.Option
		if e.config.Privy.BaseURL != "" {
			popts = append(popts, privy.WithBaseURL(e.config.Privy.BaseURL))
		}
		opts = append(opts, clawback.WithBackend(privy.New(e.config.Privy.AppID, e.config.Privy.AppSecret, popts...)))
	}
	if e.config.DefaultBackend != "" {
		opts = append(opts, clawback.WithDefaultBackend(e.config.DefaultBackend))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("clawback: configuration is required but not found in config files; " +
				"ensure 'extensions.clawback' or 'clawback' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("clawback: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("fee_rate_bps", e.config.FeeRateBps),
		forge.F("default_chain", e.config.DefaultChain),
		forge.F("default_backend", e.config.DefaultBackend),
		forge.F("revocation_retry_interval", e.config.RevocationRetryInterval),
		forge.F("revocation_max_attempts", e.config.RevocationMaxAttempts),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.clawback" first (namespaced pattern).
	if cm.IsSet("extensions.clawback") {
		if err := cm.Bind("extensions.clawback", &cfg); err == nil {
			e.Logger().Debug("clawback: loaded config from file",
				forge.F("key", "extensions.clawback"),
			)
			return cfg, true
		}
		e.Logger().Warn("clawback: failed to bind extensions.clawback config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "clawback" key.
	if cm.IsSet("clawback") {
		if err := cm.Bind("clawback", &cfg); err == nil {
			e.Logger().Debug("clawback: loaded config from file",
				forge.F("key", "clawback"),
			)
			return cfg, true
		}
		e.Logger().Warn("clawback: failed to bind clawback config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.FeeRateBps == 0 {
		cfg.FeeRateBps = defaults.FeeRateBps
	}
	if cfg.DefaultChain == "" {
		cfg.DefaultChain = defaults.DefaultChain
	}
	if cfg.RevocationRetryInterval == 0 {
		cfg.RevocationRetryInterval = defaults.RevocationRetryInterval
	}
	if cfg.RevocationMaxAttempts == 0 {
		cfg.RevocationMaxAttempts = defaults.RevocationMaxAttempts
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.DefaultChain == "" && programmaticConfig.DefaultChain != "" {
		yamlConfig.DefaultChain = programmaticConfig.DefaultChain
	}
	if yamlConfig.DefaultBackend == "" && programmaticConfig.DefaultBackend != "" {
		yamlConfig.DefaultBackend = programmaticConfig.DefaultBackend
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.FeeRateBps == 0 && programmaticConfig.FeeRateBps != 0 {
		yamlConfig.FeeRateBps = programmaticConfig.FeeRateBps
	}
	if yamlConfig.RevocationRetryInterval == 0 && programmaticConfig.RevocationRetryInterval != 0 {
		yamlConfig.RevocationRetryInterval = programmaticConfig.RevocationRetryInterval
	}
	if yamlConfig.RevocationMaxAttempts == 0 && programmaticConfig.RevocationMaxAttempts != 0 {
		yamlConfig.RevocationMaxAttempts = programmaticConfig.RevocationMaxAttempts
	}

	// Provider credentials: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.Crossmint.APIKey == "" {
		yamlConfig.Crossmint = programmaticConfig.Crossmint
	}
	if yamlConfig.Privy.AppID == "" {
		yamlConfig.Privy = programmaticConfig.Privy
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
