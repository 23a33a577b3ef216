package archive

import (
	"strings"
	"testing"

	"github.com/jaydenbeard/haven/internal/identity"
)

func sampleManifest() Manifest {
	return Manifest{
		Version:      ManifestVersion,
		Format:       Format,
		ExportedBy:   Exporter{UserID: "u1", Username: "alice", IdentityKey: "abc"},
		ExportedAt:   "2026-01-01T00:00:00Z",
		Files:        map[string]FileEntry{"a.json": {SHA256: "deadbeef", Size: 4}},
		MessageCount: 3,
		DateRange:    DateRange{From: "2026-01-01T00:00:00Z", To: "2026-01-02T00:00:00Z"},
	}
}

func TestCanonicalManifestOmitsSignatures(t *testing.T) {
	m := sampleManifest()
	m.UserSignature = "sig1"
	m.ServerSignature = "sig2"

	canon, err := canonicalManifest(m)
	if err != nil {
		t.Fatalf("canonicalManifest: %v", err)
	}
	s := string(canon)
	if strings.Contains(s, "sig1") || strings.Contains(s, "sig2") {
		t.Fatalf("canonical manifest must not contain signature fields: %s", s)
	}
}

func TestCanonicalManifestTopLevelKeysSorted(t *testing.T) {
	canon, err := canonicalManifest(sampleManifest())
	if err != nil {
		t.Fatalf("canonicalManifest: %v", err)
	}
	if canon[0] != '{' {
		t.Fatalf("expected canonical manifest to start with '{', got %q", canon[0])
	}
	// "date_range" sorts before "exported_at", which sorts before "files".
	s := string(canon)
	dateRangeIdx := strings.Index(s, `"date_range"`)
	exportedAtIdx := strings.Index(s, `"exported_at"`)
	filesIdx := strings.Index(s, `"files"`)
	if dateRangeIdx < 0 || exportedAtIdx < 0 || filesIdx < 0 {
		t.Fatalf("missing expected keys in %s", canon)
	}
	if !(dateRangeIdx < exportedAtIdx && exportedAtIdx < filesIdx) {
		t.Fatalf("top-level keys not in sorted order: %s", canon)
	}
}

func TestCanonicalManifestDeterministic(t *testing.T) {
	m := sampleManifest()
	a, err := canonicalManifest(m)
	if err != nil {
		t.Fatal(err)
	}
	b, err := canonicalManifest(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("canonicalManifest is not deterministic:\n%s\n%s", a, b)
	}
}

func TestSignAndVerifyManifest(t *testing.T) {
	kp, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	other, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}

	m := sampleManifest()
	sig, err := SignManifest(m, kp.Private)
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyManifest(m, sig, kp.Public) {
		t.Fatal("expected signature to verify against the signing key")
	}
	if VerifyManifest(m, sig, other.Public) {
		t.Fatal("expected signature to fail to verify against a different key")
	}
}
