// Package crypto provides the key derivation and authenticated encryption
// primitives used to protect the encrypted store's on-disk file, plus the
// raw HMAC-SHA256/constant-time primitives used by the SigV4 verifier.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// KeySize is the size in bytes of the derived AES-256 key.
const KeySize = 32

// SaltSize is the size in bytes of a freshly generated KDF salt.
const SaltSize = 16

// Params holds scrypt cost parameters. Higher N costs more CPU/memory per
// derivation and is the primary defense against offline passphrase guessing.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams are conservative but interactive-friendly scrypt parameters,
// matching the cost class recommended for encrypting small local files (not
// tuned for high-throughput multi-tenant KDF-as-a-service use).
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1}

// NewSalt returns SaltSize fresh random bytes suitable for use with DeriveKey.
// A failure to read from the OS CSPRNG indicates a broken host and is fatal
// to the caller — there is no safe degraded mode.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("reading random salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a KeySize-byte AES-256 key from passphrase and salt using
// scrypt under the given cost parameters.
func DeriveKey(p Params, passphrase string, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("crypto: empty salt")
	}
	key, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
