package config

import "testing"

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.DefaultDecision != "allow" {
		t.Errorf("DefaultDecision = %q, want %q", cfg.DefaultDecision, "allow")
	}
	if cfg.Cache.MaxEntries != 100 {
		t.Errorf("Cache.MaxEntries = %d, want 100", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTLMs != 60_000 {
		t.Errorf("Cache.TTLMs = %d, want 60000", cfg.Cache.TTLMs)
	}
	if !cfg.Breaker.FailClosed {
		t.Error("Breaker.FailClosed should default to true")
	}
	if !cfg.Signing.Required {
		t.Error("Signing.Required should default to true")
	}
	if cfg.Explanation.Verbosity != "simple" {
		t.Errorf("Explanation.Verbosity = %q, want %q", cfg.Explanation.Verbosity, "simple")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		DefaultDecision: "deny",
		Cache:           CacheConfig{MaxEntries: 10},
	}
	cfg.SetDefaults()

	if cfg.DefaultDecision != "deny" {
		t.Errorf("DefaultDecision = %q, want preserved %q", cfg.DefaultDecision, "deny")
	}
	if cfg.Cache.MaxEntries != 10 {
		t.Errorf("Cache.MaxEntries = %d, want preserved 10", cfg.Cache.MaxEntries)
	}
}

func TestConfig_SetDevDefaults_NoOpWhenNotDevMode(t *testing.T) {
	t.Parallel()

	cfg := Config{Signing: SigningConfig{Required: true}, Breaker: BreakerConfig{FailClosed: true}}
	cfg.SetDevDefaults()

	if !cfg.Signing.Required || !cfg.Breaker.FailClosed {
		t.Error("SetDevDefaults should not touch a config with DevMode=false")
	}
}

func TestConfig_SetDevDefaults_RelaxesSigningAndBreaker(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true, Signing: SigningConfig{Required: true}, Breaker: BreakerConfig{FailClosed: true}}
	cfg.SetDevDefaults()

	if cfg.Signing.Required {
		t.Error("dev mode should relax Signing.Required")
	}
	if cfg.Breaker.FailClosed {
		t.Error("dev mode should relax Breaker.FailClosed")
	}
}
