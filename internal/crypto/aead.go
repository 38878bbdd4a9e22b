package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// Seal encrypts plaintext with AES-256-GCM under key, returning
// nonce||ciphertext||tag. key must be KeySize bytes (the output of DeriveKey).
func Seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM mode: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Returns ErrUnauthenticated if the
// blob was truncated or fails authentication (wrong key, or tampering).
func Open(key, blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM mode: %w", err)
	}
	if len(blob) < gcm.NonceSize() {
		return nil, ErrUnauthenticated
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return plaintext, nil
}

// ErrUnauthenticated is returned by Open when the blob fails AEAD
// authentication: wrong passphrase, wrong salt, or corrupted/tampered data.
var ErrUnauthenticated = fmt.Errorf("crypto: ciphertext failed authentication")
