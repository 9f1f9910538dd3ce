package service

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// secretParams mirrors the teacher's OWASP-minimum Argon2id parameters
// (internal/domain/auth/api_key.go's argon2idParams): 47 MiB memory, 1
// iteration, 1 degree of parallelism.
var secretParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashSecret returns a PHC-format Argon2id hash of a secret at rest — used
// for a sync API key (cfg.Sync.SyncAPIKey) or a signed-bundle private key's
// unlock passphrase, per SPEC_FULL.md §11.
func HashSecret(raw string) (string, error) {
	return argon2id.CreateHash(raw, secretParams)
}

// VerifySecret reports whether raw matches storedHash. The underlying
// argon2id library panics on a malformed PHC hash (bad parameters); this
// wraps the call exactly like the teacher's safeArgon2idCompare so a
// corrupt stored hash becomes an error, never a panic.
func VerifySecret(raw, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(raw, storedHash)
}
