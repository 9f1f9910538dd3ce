// Package config provides configuration loading for the veto engine.
package config

import "github.com/spf13/viper"

// Config is the root configuration for a veto engine instance: the tunables
// for every adapter (cache, sync, breaker/retry, bundle signing, explanation
// verbosity) plus the engine-level default decision.
type Config struct {
	DefaultDecision string `yaml:"default_decision" mapstructure:"default_decision" validate:"omitempty,oneof=allow deny"`

	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Signing    SigningConfig    `yaml:"signing" mapstructure:"signing"`
	Explanation ExplanationConfig `yaml:"explanation" mapstructure:"explanation"`

	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// CacheConfig tunes the compiled-policy cache (LRU + TTL + last-known-good).
type CacheConfig struct {
	FreshMs    int64 `yaml:"fresh_ms" mapstructure:"fresh_ms" validate:"omitempty,min=0"`
	MaxMs      int64 `yaml:"max_ms" mapstructure:"max_ms"`
	TTLMs      int64 `yaml:"ttl_ms" mapstructure:"ttl_ms" validate:"omitempty,min=0"`
	MaxEntries int   `yaml:"max_entries" mapstructure:"max_entries" validate:"omitempty,min=1"`
}

// BreakerConfig tunes the circuit breaker guarding network validators.
type BreakerConfig struct {
	FailureThreshold   int `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"omitempty,min=1"`
	ResetTimeoutMs     int64 `yaml:"reset_timeout_ms" mapstructure:"reset_timeout_ms" validate:"omitempty,min=0"`
	HalfOpenMaxAttempts int `yaml:"half_open_max_attempts" mapstructure:"half_open_max_attempts" validate:"omitempty,min=1"`
	FailClosed         bool  `yaml:"fail_closed" mapstructure:"fail_closed"`
}

// RetryConfig tunes exponential-backoff retry for network validators.
type RetryConfig struct {
	MaxAttempts int   `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1"`
	BaseDelayMs int64 `yaml:"base_delay_ms" mapstructure:"base_delay_ms" validate:"omitempty,min=1"`
	MaxDelayMs  int64 `yaml:"max_delay_ms" mapstructure:"max_delay_ms" validate:"omitempty,gtefield=BaseDelayMs"`
}

// SyncConfig tunes background policy sync.
type SyncConfig struct {
	PolicySyncURL string `yaml:"policy_sync_url" mapstructure:"policy_sync_url" validate:"omitempty,url"`
	SyncIntervalMs int64 `yaml:"sync_interval_ms" mapstructure:"sync_interval_ms" validate:"omitempty,min=1000"`
	SyncAPIKey    string `yaml:"sync_api_key" mapstructure:"sync_api_key"`
}

// SigningConfig controls signed-bundle verification for C13.
type SigningConfig struct {
	Enabled       bool              `yaml:"enabled" mapstructure:"enabled"`
	Required      bool              `yaml:"required" mapstructure:"required"`
	PublicKeys    map[string]string `yaml:"public_keys" mapstructure:"public_keys"` // key id -> base64 Ed25519 public key
	PinnedVersion string            `yaml:"pinned_version" mapstructure:"pinned_version"`
	PinnedHash    string            `yaml:"pinned_hash" mapstructure:"pinned_hash"`
}

// ExplanationConfig controls the verbosity and redaction of the decision
// explanation trail (C12).
type ExplanationConfig struct {
	Verbosity   string   `yaml:"verbosity" mapstructure:"verbosity" validate:"omitempty,oneof=none simple verbose"`
	RedactPaths []string `yaml:"redact_paths" mapstructure:"redact_paths"`
}

// SetDefaults fills in sensible production defaults for fields the caller
// left zero-valued. viper.IsSet distinguishes "not present in config" from
// "explicitly set to false/0" for the handful of fields where the zero value
// is a legitimate user choice.
func (c *Config) SetDefaults() {
	if c.DefaultDecision == "" {
		c.DefaultDecision = "allow"
	}

	if c.Cache.FreshMs == 0 {
		c.Cache.FreshMs = 30_000
	}
	if c.Cache.MaxMs == 0 {
		c.Cache.MaxMs = 300_000
	}
	if c.Cache.TTLMs == 0 {
		c.Cache.TTLMs = 60_000
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 100
	}

	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.ResetTimeoutMs == 0 {
		c.Breaker.ResetTimeoutMs = 30_000
	}
	if c.Breaker.HalfOpenMaxAttempts == 0 {
		c.Breaker.HalfOpenMaxAttempts = 1
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = 100
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 5_000
	}

	if c.Sync.SyncIntervalMs == 0 {
		c.Sync.SyncIntervalMs = 30_000
	}

	if c.Explanation.Verbosity == "" {
		c.Explanation.Verbosity = "simple"
	}

	// viper.IsSet distinguishes "not set" (zero value) from "explicitly
	// false" for the booleans whose safe default is true.
	if !viper.IsSet("breaker.fail_closed") {
		c.Breaker.FailClosed = true
	}
	if !viper.IsSet("signing.required") {
		c.Signing.Required = true
	}
}

// SetDevDefaults applies permissive defaults for local/dev runs: signing
// not required and breaker fail-open. Cache settings are left as they are.
// Must be called after SetDefaults so it can
// override the production-safe choices.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Signing.Required = false
	c.Breaker.FailClosed = false
}
