package archive

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

// ManifestVersion is the only manifest schema version this module emits
// or accepts (spec §3).
const ManifestVersion = 1

// Format is the fixed format discriminator stamped into every manifest.
const Format = "haven-export"

// Scope enumerates the optional export scope a manifest may declare.
type Scope string

const (
	ScopeServer  Scope = "server"
	ScopeChannel Scope = "channel"
	ScopeDM      Scope = "dm"
)

// Exporter identifies who produced the archive.
type Exporter struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	IdentityKey string `json:"identity_key"` // base64 Ed25519 public key
}

// FileEntry records a single archived blob's integrity fields.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// DateRange bounds the messages an archive covers.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Manifest is the HavenManifest structure described in spec §3.
type Manifest struct {
	Version        int                  `json:"version"`
	Format         string               `json:"format"`
	ExportedBy     Exporter             `json:"exported_by"`
	ExportedAt     string               `json:"exported_at"`
	Scope          Scope                `json:"scope,omitempty"`
	ServerID       string               `json:"server_id,omitempty"`
	ChannelID      string               `json:"channel_id,omitempty"`
	InstanceURL    string               `json:"instance_url,omitempty"`
	Files          map[string]FileEntry `json:"files"`
	MessageCount   int                  `json:"message_count"`
	DateRange      DateRange            `json:"date_range"`
	UserSignature  string               `json:"user_signature,omitempty"`
	ServerSignature string              `json:"server_signature,omitempty"`
}

// SignManifest signs the canonical byte representation of m (with both
// signature fields absent) and returns the base64-encoded Ed25519
// signature (spec §4.10).
func SignManifest(m Manifest, priv ed25519.PrivateKey) (string, error) {
	canon, err := canonicalManifest(m)
	if err != nil {
		return "", fmt.Errorf("archive: canonicalize manifest for signing: %w", err)
	}
	sig := ed25519.Sign(priv, canon)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyManifest reports whether signatureB64 is a valid Ed25519 signature
// over the canonical byte representation of m, under pub. Any malformed
// input (bad base64, wrong length) returns false rather than an error,
// matching spec §4.10's "any exception returns false" contract.
func VerifyManifest(m Manifest, signatureB64 string, pub ed25519.PublicKey) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	canon, err := canonicalManifest(m)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, canon, sig)
}

var errManifestEncode = errors.New("archive: failed to encode manifest for canonicalization")
