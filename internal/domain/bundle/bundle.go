package bundle

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/vetoguard/veto/internal/domain/rule"
)

// SignedBundle is the on-disk/on-wire signed rule-set artifact (spec §3).
type SignedBundle struct {
	Payload     string `json:"payload"`      // canonical JSON of the RuleSet
	Signature   string `json:"signature"`    // base64 Ed25519 signature over Payload
	PublicKeyID string `json:"publicKeyId"`
	Version     int    `json:"version"`
	PayloadHash string `json:"payloadHash"` // SHA-256 hex of Payload
	SignedAt    string `json:"signedAt"`    // ISO8601
}

var (
	// ErrUntrustedKey is returned when the bundle's publicKeyId is unknown
	// and key rotation fallback is disabled or exhausted.
	ErrUntrustedKey = errors.New("bundle: public key id is not trusted")
	// ErrPayloadHashMismatch is returned when the recomputed SHA-256 of the
	// payload disagrees with the bundle's declared payloadHash.
	ErrPayloadHashMismatch = errors.New("bundle: payload hash mismatch")
	// ErrVersionPinMismatch is returned when a configured pinned version
	// disagrees with the bundle's version.
	ErrVersionPinMismatch = errors.New("bundle: version does not match pinned version")
	// ErrHashPinMismatch is returned when a configured pinned hash
	// disagrees with the bundle's payload hash.
	ErrHashPinMismatch = errors.New("bundle: payload hash does not match pinned hash")
)

// ruleSetDoc mirrors the JSON shape a RuleSet canonicalizes to/from — the
// loader's RawFile, reused here so Canonicalize/parse round-trip through
// the same field names a rule file uses.
type ruleSetDoc struct {
	Version     int             `json:"version"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Rules       []rule.RawRule  `json:"rules"`
}

// CreateSignedBundle canonicalizes ruleSet and signs it with priv, stamping
// keyID and the current time.
func CreateSignedBundle(rs *rule.RuleSet, priv ed25519.PrivateKey, keyID string, now time.Time) (*SignedBundle, error) {
	doc := toRuleSetDoc(rs)
	canonical, err := Canonicalize(doc)
	if err != nil {
		return nil, fmt.Errorf("bundle: canonicalize rule set: %w", err)
	}
	return &SignedBundle{
		Payload:     string(canonical),
		Signature:   SignPayload(canonical, priv),
		PublicKeyID: keyID,
		Version:     rs.Version,
		PayloadHash: SHA256Hex(canonical),
		SignedAt:    now.UTC().Format(time.RFC3339),
	}, nil
}

// VerifyOptions configures bundle trust resolution.
type VerifyOptions struct {
	AllowKeyRotation bool
	PinnedVersion    int // 0 means unset
	PinnedHash       string
}

// VerifyBundle validates the bundle's signature against trustedKeys (key id
// -> public key). If the bundle's declared key id is trusted, only that key
// is tried. Otherwise, when opts.AllowKeyRotation is set, every trusted key
// is tried in turn and the first successful verification wins — key
// rotation support for bundles signed under a retiring key id.
func VerifyBundle(b *SignedBundle, trustedKeys map[string]ed25519.PublicKey, opts VerifyOptions) error {
	canonical := []byte(b.Payload)

	if pub, ok := trustedKeys[b.PublicKeyID]; ok {
		if VerifySignature(canonical, b.Signature, pub) {
			return nil
		}
		return ErrInvalidSignature
	}

	if !opts.AllowKeyRotation {
		return ErrUntrustedKey
	}
	for _, pub := range trustedKeys {
		if VerifySignature(canonical, b.Signature, pub) {
			return nil
		}
	}
	return ErrUntrustedKey
}

// VerifyBundleWithConfig runs VerifyBundle plus the additional fail-closed
// checks spec §4.13 requires before a bundle is trusted as policy: the
// payload hash must match what's recorded, and any pinned version/hash
// configured by the operator must match exactly.
func VerifyBundleWithConfig(b *SignedBundle, trustedKeys map[string]ed25519.PublicKey, opts VerifyOptions) error {
	if err := VerifyBundle(b, trustedKeys, opts); err != nil {
		return err
	}
	if SHA256Hex([]byte(b.Payload)) != b.PayloadHash {
		return ErrPayloadHashMismatch
	}
	if opts.PinnedVersion != 0 && opts.PinnedVersion != b.Version {
		return ErrVersionPinMismatch
	}
	if opts.PinnedHash != "" && opts.PinnedHash != b.PayloadHash {
		return ErrHashPinMismatch
	}
	return nil
}

// ParseBundlePayload parses a verified bundle's canonical-JSON payload back
// into a normalized RuleSet (spec §8: parseBundlePayload(createSignedBundle(R,
// k, id)) == normalize(R)).
func ParseBundlePayload(b *SignedBundle) (*rule.RuleSet, error) {
	return rule.Load("bundle", []byte(b.Payload))
}

func toRuleSetDoc(rs *rule.RuleSet) ruleSetDoc {
	raw := make([]rule.RawRule, len(rs.Rules))
	for i, r := range rs.Rules {
		raw[i] = r.ToRawRule()
	}
	return ruleSetDoc{Version: rs.Version, Name: rs.Name, Description: rs.Description, Rules: raw}
}
