package config

import "testing"

func validConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaulted config: %v", err)
	}
}

func TestValidate_RejectsUnknownDefaultDecision(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.DefaultDecision = "maybe"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for default_decision=maybe")
	}
}

func TestValidate_RejectsCacheMaxBelowFresh(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Cache.FreshMs = 100_000
	cfg.Cache.MaxMs = 1_000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when cache.max_ms < cache.fresh_ms")
	}
}

func TestValidate_RejectsSigningEnabledWithoutKeys(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Signing.Enabled = true
	cfg.Signing.PublicKeys = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when signing.enabled but no public_keys")
	}
}

func TestValidate_RejectsNonBase64PublicKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Signing.Enabled = true
	cfg.Signing.PublicKeys = map[string]string{"k1": "not valid base64!!"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-base64 public key")
	}
}

func TestValidate_AcceptsValidBase64PublicKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Signing.Enabled = true
	cfg.Signing.PublicKeys = map[string]string{"k1": "YWJjZGVmZ2g="}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid base64 key to pass, got %v", err)
	}
}

func TestValidate_RejectsSyncAPIKeyWithoutURL(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Sync.SyncAPIKey = "secret"
	cfg.Sync.PolicySyncURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for sync_api_key without policy_sync_url")
	}
}

func TestValidate_AcceptsSyncAPIKeyWithURL(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Sync.SyncAPIKey = "secret"
	cfg.Sync.PolicySyncURL = "https://policy.example.com/rules"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected sync_api_key with policy_sync_url to pass, got %v", err)
	}
}
