// Package keystore protects a havenserver instance's Ed25519 server
// identity key (the key used to countersign exported archives) at rest.
// The local backend wraps it with a passphrase via Argon2id key
// derivation and NaCl secretbox, for single-node and development
// deployments; the Vault backend (vault.go) is for clustered ones.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jaydenbeard/haven/internal/security"
	"golang.org/x/crypto/nacl/secretbox"
)

var ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupted file")

// sealedKeyFile is the on-disk JSON envelope around a sealed Ed25519
// private key.
type sealedKeyFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// LocalStore seals a single server identity key to a local file with a
// passphrase-derived key.
type LocalStore struct {
	path string
}

// NewLocalStore points a LocalStore at a file path; the file need not
// exist yet (see Seal).
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Seal derives a 32-byte key from passphrase via Argon2id, encrypts priv
// with secretbox, and writes the sealed envelope to disk.
func (l *LocalStore) Seal(priv ed25519.PrivateKey, passphrase string) error {
	salt, err := security.GenerateSalt(16)
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	key, err := security.DeriveKey(passphrase, salt, 32)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	var keyArr [32]byte
	copy(keyArr[:], key)

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := secretbox.Seal(nil, priv, &nonce, &keyArr)

	envelope := sealedKeyFile{Salt: salt, Nonce: nonce[:], Ciphertext: ciphertext}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal sealed key: %w", err)
	}

	return os.WriteFile(l.path, data, 0o600)
}

// Unseal reads the sealed envelope and decrypts it with the passphrase.
func (l *LocalStore) Unseal(passphrase string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	var envelope sealedKeyFile
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse keystore file: %w", err)
	}

	key, err := security.DeriveKey(passphrase, envelope.Salt, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var keyArr [32]byte
	copy(keyArr[:], key)

	var nonce [24]byte
	copy(nonce[:], envelope.Nonce)

	plaintext, ok := secretbox.Open(nil, envelope.Ciphertext, &nonce, &keyArr)
	if !ok {
		return nil, ErrWrongPassphrase
	}

	return ed25519.PrivateKey(plaintext), nil
}

// Exists reports whether a sealed key file is already present.
func (l *LocalStore) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}
