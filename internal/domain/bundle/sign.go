package bundle

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature is returned by bundle verification when the signature
// does not match the payload under the given public key (VerifySignature
// itself reports this as false).
var ErrInvalidSignature = errors.New("bundle: invalid signature")

// SignPayload signs a canonical-JSON payload with an Ed25519 private key,
// returning the base64-encoded signature.
func SignPayload(canonical []byte, priv ed25519.PrivateKey) string {
	sig := ed25519.Sign(priv, canonical)
	return base64.StdEncoding.EncodeToString(sig)
}

// VerifySignature reports whether sig (base64) is a valid Ed25519
// signature over canonical under pub.
func VerifySignature(canonical []byte, sig string, pub ed25519.PublicKey) bool {
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, canonical, raw)
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
