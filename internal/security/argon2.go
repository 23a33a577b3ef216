// Package security derives symmetric keys from a passphrase via
// Argon2id. internal/keystore uses it to wrap a havenserver instance's
// Ed25519 server identity key at rest.
package security

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for sealing a server identity key. OWASP
// recommends time=1, memory=64MB, threads=4 for interactive unseal
// operations.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// DeriveKey derives a symmetric key from a passphrase and salt using
// Argon2id, for sealing or unsealing a server identity key with
// NaCl secretbox.
func DeriveKey(passphrase string, salt []byte, keyLength uint32) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}
	if len(salt) < 8 {
		return nil, errors.New("salt must be at least 8 bytes")
	}
	if keyLength < 16 {
		return nil, errors.New("key length must be at least 16 bytes")
	}

	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, keyLength), nil
}

// GenerateSalt generates a cryptographically secure random salt for
// use with DeriveKey.
func GenerateSalt(length int) ([]byte, error) {
	if length < 8 {
		length = 16
	}
	salt := make([]byte, length)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
