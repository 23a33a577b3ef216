// Package identity provides the Ed25519 identity keypair used across the
// sender-key and archive subsystems, along with the conversion to X25519
// required to open/seal SKDM envelopes against the same keypair.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// KeyPair is a long-term Ed25519 signing identity. Generation and storage
// are out of scope for the cryptographic core (spec §1); this type is the
// shape the rest of the module consumes as input.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Generate produces a fresh Ed25519 identity keypair. Not part of the
// cryptographic core's hard contract — provided so callers (the CLI,
// tests, the keystore) have somewhere to get one from.
func Generate() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate identity keypair: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// PublicKeyBase64 renders an Ed25519 public key as standard, padded base64,
// the format the HavenManifest's exported_by.identity_key field uses.
func PublicKeyBase64(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

// ParsePublicKeyBase64 decodes a base64 Ed25519 public key.
func ParsePublicKeyBase64(s string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode identity key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity key has wrong length: got %d, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// ToX25519Public converts an Ed25519 public key to its birationally
// equivalent X25519 (Curve25519 Montgomery) public key, used by the SKDM
// envelope's sealed-box encryption (spec §4.3).
func ToX25519Public(pub ed25519.PublicKey) ([32]byte, error) {
	var out [32]byte
	if len(pub) != ed25519.PublicKeySize {
		return out, errors.New("invalid ed25519 public key length")
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return out, fmt.Errorf("ed25519 public key is not a valid curve point: %w", err)
	}
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// ToX25519Private converts an Ed25519 private key to its corresponding
// X25519 scalar. This is the standard conversion libsodium's
// crypto_sign_ed25519_sk_to_curve25519 performs: hash the 32-byte seed with
// SHA-512 and clamp the low half exactly as Ed25519 itself does when it
// derives its scalar from the seed.
func ToX25519Private(priv ed25519.PrivateKey) ([32]byte, error) {
	var out [32]byte
	if len(priv) != ed25519.PrivateKeySize {
		return out, errors.New("invalid ed25519 private key length")
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	copy(out[:], h[:32])
	return out, nil
}

// Fingerprint derives a 12-group, 60-digit human-verifiable safety number
// for a single identity key, the same digit-grouping construction the
// parent messaging backend uses to let two users compare keys out of band.
// Unlike the two-party safety number, this is a one-sided fingerprint over
// the key alone — suitable for display alongside an archive's exported_by
// field so a recipient can eyeball which identity signed it.
func Fingerprint(pub ed25519.PublicKey) string {
	hash := sha256.Sum256(pub)

	digits := make([]byte, 0, 60)
	for i := 0; i < 12; i++ {
		offset := i * 5 / 2
		var value uint32
		if i%2 == 0 {
			value = uint32(hash[offset%32])<<12 | uint32(hash[(offset+1)%32])<<4 | uint32(hash[(offset+2)%32])>>4
		} else {
			value = uint32(hash[offset%32]&0x0F)<<16 | uint32(hash[(offset+1)%32])<<8 | uint32(hash[(offset+2)%32])
		}
		value %= 100000
		digits = append(digits,
			'0'+byte((value/10000)%10),
			'0'+byte((value/1000)%10),
			'0'+byte((value/100)%10),
			'0'+byte((value/10)%10),
			'0'+byte(value%10),
		)
	}
	return string(digits)
}

// FormatFingerprint lays a 60-digit fingerprint out as two rows of six
// 5-digit groups, mirroring the parent backend's FormatSafetyNumber.
func FormatFingerprint(fp string) string {
	if len(fp) != 60 {
		return fp
	}
	groups := make([]string, 12)
	for i := 0; i < 12; i++ {
		groups[i] = fp[i*5 : i*5+5]
	}
	row1, row2 := groups[:6], groups[6:]
	out := ""
	for i, g := range row1 {
		if i > 0 {
			out += " "
		}
		out += g
	}
	out += "\n"
	for i, g := range row2 {
		if i > 0 {
			out += " "
		}
		out += g
	}
	return out
}
