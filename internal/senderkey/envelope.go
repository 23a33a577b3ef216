package senderkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jaydenbeard/haven/internal/identity"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"
)

// SealedBoxOverhead is the fixed number of extra bytes a sealed box adds
// over the plaintext: a 32-byte ephemeral public key plus a 16-byte
// Poly1305 tag (spec §6).
const SealedBoxOverhead = 32 + box.Overhead

// EncryptSKDM seals an SKDM payload to a recipient's Ed25519 identity
// public key using anonymous sealed-box encryption (spec §4.3): the
// recipient's key is converted to X25519, an ephemeral X25519 keypair is
// generated per call, and the box is built the way libsodium's
// crypto_box_seal does — nonce = BLAKE2b-24(ephemeral_pk || recipient_pk),
// so the sender needs no long-term key of its own and the recipient can
// open the box knowing only its own keypair.
func EncryptSKDM(payload []byte, recipientPublic ed25519.PublicKey) ([]byte, error) {
	recipientX25519, err := identity.ToX25519Public(recipientPublic)
	if err != nil {
		return nil, fmt.Errorf("senderkey: convert recipient key: %w", err)
	}

	ephemeralPublic, ephemeralPrivate, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("senderkey: generate ephemeral keypair: %w", err)
	}

	nonce, err := sealedBoxNonce(ephemeralPublic[:], recipientX25519[:])
	if err != nil {
		return nil, fmt.Errorf("senderkey: derive sealed box nonce: %w", err)
	}

	sealed := box.Seal(nil, payload, &nonce, &recipientX25519, ephemeralPrivate)

	out := make([]byte, 0, len(ephemeralPublic)+len(sealed))
	out = append(out, ephemeralPublic[:]...)
	out = append(out, sealed...)
	return out, nil
}

// DecryptSKDM opens a sealed SKDM produced by EncryptSKDM, using the
// recipient's own Ed25519 identity keypair converted to X25519. Any
// failure — wrong recipient, tampered bytes, truncated input — collapses
// to the single opaque ErrSkdmDecryptFailed, leaking no partial
// information about which check failed (spec §4.3).
func DecryptSKDM(sealed []byte, recipient identity.KeyPair) ([]byte, error) {
	if len(sealed) < 32+box.Overhead {
		return nil, ErrSkdmDecryptFailed
	}

	var ephemeralPublic [32]byte
	copy(ephemeralPublic[:], sealed[:32])
	ciphertext := sealed[32:]

	recipientPrivateX, err := identity.ToX25519Private(recipient.Private)
	if err != nil {
		return nil, ErrSkdmDecryptFailed
	}
	recipientPublicX, err := identity.ToX25519Public(recipient.Public)
	if err != nil {
		return nil, ErrSkdmDecryptFailed
	}

	nonce, err := sealedBoxNonce(ephemeralPublic[:], recipientPublicX[:])
	if err != nil {
		return nil, ErrSkdmDecryptFailed
	}

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &ephemeralPublic, &recipientPrivateX)
	if !ok {
		return nil, ErrSkdmDecryptFailed
	}
	return plaintext, nil
}

// sealedBoxNonce derives the 24-byte secretbox nonce libsodium's
// crypto_box_seal uses: the first 24 bytes of BLAKE2b-256 over the
// ephemeral public key concatenated with the recipient's public key. This
// is what makes the box "anonymous" safe to reuse across calls — the
// nonce is bound to a fresh ephemeral key every time, never to a static
// sender identity.
func sealedBoxNonce(ephemeralPublic, recipientPublic []byte) ([24]byte, error) {
	var nonce [24]byte
	h, err := blake2b.New(24, nil)
	if err != nil {
		return nonce, errors.New("senderkey: blake2b init failed")
	}
	h.Write(ephemeralPublic)
	h.Write(recipientPublic)
	copy(nonce[:], h.Sum(nil))
	return nonce, nil
}
