package extension

import "time"

// CrossmintConfig holds credentials for the Crossmint payout backend.
type CrossmintConfig struct {
	// APIKey is the server-side Crossmint API key. The backend is only
	// constructed when this is non-empty.
	APIKey string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`

	// BaseURL overrides the production API endpoint (staging, test doubles).
	BaseURL string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
}

// PrivyConfig holds credentials for the Privy payout backend.
type PrivyConfig struct {
	// AppID is the Privy application identifier.
	AppID string `json:"app_id" mapstructure:"app_id" yaml:"app_id"`

	// AppSecret is the Privy application secret. The backend is only
	// constructed when both AppID and AppSecret are non-empty.
	AppSecret string `json:"app_secret" mapstructure:"app_secret" yaml:"app_secret"`

	// BaseURL overrides the production API endpoint (staging, test doubles).
	BaseURL string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
}

// Config holds the Clawback extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.clawback" or "clawback" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// FeeRateBps is the platform fee retained from each refund, in basis
	// points (default: 200, i.e. 2%).
	FeeRateBps int64 `json:"fee_rate_bps" mapstructure:"fee_rate_bps" yaml:"fee_rate_bps"`

	// DefaultChain is the chain identifier used when a refund request does
	// not specify one (default: "base").
	DefaultChain string `json:"default_chain" mapstructure:"default_chain" yaml:"default_chain"`

	// DefaultBackend names the payout backend used when a creator's ledger
	// does not pin a wallet provider.
	DefaultBackend string `json:"default_backend" mapstructure:"default_backend" yaml:"default_backend"`

	// RevocationRetryInterval is how often failed grant revocations are
	// retried (default: 5s).
	RevocationRetryInterval time.Duration `json:"revocation_retry_interval" mapstructure:"revocation_retry_interval" yaml:"revocation_retry_interval"`

	// RevocationMaxAttempts bounds retries per failed revocation (default: 5).
	RevocationMaxAttempts int `json:"revocation_max_attempts" mapstructure:"revocation_max_attempts" yaml:"revocation_max_attempts"`

	// Crossmint configures the Crossmint payout backend.
	Crossmint CrossmintConfig `json:"crossmint" mapstructure:"crossmint" yaml:"crossmint"`

	// Privy configures the Privy payout backend.
	Privy PrivyConfig `json:"privy" mapstructure:"privy" yaml:"privy"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FeeRateBps:              200,
		DefaultChain:            "base",
		RevocationRetryInterval: 5 * time.Second,
		RevocationMaxAttempts:   5,
	}
}
