package service

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/vetoguard/veto/internal/config"
	"github.com/vetoguard/veto/internal/domain/bundle"
	"github.com/vetoguard/veto/internal/domain/rule"
)

// LoadPolicy turns raw policy bytes into a normalized RuleSet, honoring
// cfg.Signing (spec §4.13 — C13's load path). When signing is disabled the
// bytes are loaded as a plain rule file. When enabled, the bytes must decode
// as a bundle.SignedBundle JSON envelope; the signature, payload hash, and
// any pinned version/hash are all verified before the payload is trusted as
// policy. cfg.Signing.Required controls whether a plain (unsigned) rule file
// is rejected outright or accepted as a fallback.
func LoadPolicy(cfg config.SigningConfig, data []byte) (*rule.RuleSet, error) {
	if !cfg.Enabled {
		return rule.Load("policy", data)
	}

	var b bundle.SignedBundle
	if err := json.Unmarshal(data, &b); err != nil || b.Signature == "" {
		if cfg.Required {
			return nil, fmt.Errorf("policy load: signing is required but input is not a signed bundle")
		}
		return rule.Load("policy", data)
	}

	trusted, err := decodeTrustedKeys(cfg.PublicKeys)
	if err != nil {
		return nil, fmt.Errorf("policy load: %w", err)
	}

	opts := bundle.VerifyOptions{AllowKeyRotation: true, PinnedVersion: pinnedVersion(cfg.PinnedVersion), PinnedHash: cfg.PinnedHash}
	if err := bundle.VerifyBundleWithConfig(&b, trusted, opts); err != nil {
		return nil, fmt.Errorf("policy load: bundle verification failed: %w", err)
	}

	return bundle.ParseBundlePayload(&b)
}

func decodeTrustedKeys(keys map[string]string) (map[string]ed25519.PublicKey, error) {
	out := make(map[string]ed25519.PublicKey, len(keys))
	for keyID, b64 := range keys {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode public key %q: %w", keyID, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("public key %q: expected %d bytes, got %d", keyID, ed25519.PublicKeySize, len(raw))
		}
		out[keyID] = ed25519.PublicKey(raw)
	}
	return out, nil
}

// pinnedVersion parses cfg's string pinned_version field (kept as a string
// in config so an unset value and an explicit "0" are distinguishable from
// the zero value) into the int bundle.VerifyOptions expects. A non-numeric
// or empty pin means unset.
func pinnedVersion(s string) int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0
	}
	return v
}
