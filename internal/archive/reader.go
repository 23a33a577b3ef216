package archive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jaydenbeard/haven/internal/identity"
)

// ErrMissingManifest is returned by Open when the archive has no
// manifest.json entry.
var ErrMissingManifest = errors.New("archive: missing manifest.json")

// ErrMalformedManifest is returned by Open when manifest.json fails to
// parse.
var ErrMalformedManifest = errors.New("archive: malformed manifest.json")

// Reader exposes typed accessors over an opened `.haven` archive and can
// verify its integrity and signature (spec §4.9).
type Reader struct {
	files    map[string][]byte
	Manifest Manifest
}

// Open unpacks archive bytes and parses its manifest.
func Open(data []byte) (*Reader, error) {
	files, err := unpackZip(data)
	if err != nil {
		return nil, err
	}

	manifestBytes, ok := files["manifest.json"]
	if !ok {
		return nil, ErrMissingManifest
	}

	manifest, err := unmarshalManifest(manifestBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}

	return &Reader{files: files, Manifest: manifest}, nil
}

// GetChannelExport looks up a channel's export by name, trying
// channels/<name>.json then dms/<name>.json, and returns its parsed JSON
// structure. The second return value is false if neither path exists or
// the blob doesn't parse as JSON.
func (r *Reader) GetChannelExport(name string) (map[string]interface{}, bool) {
	for _, prefix := range []string{"channels/", "dms/"} {
		data, ok := r.files[prefix+name+".json"]
		if !ok {
			continue
		}
		var parsed map[string]interface{}
		if err := jsonAPI.Unmarshal(data, &parsed); err != nil {
			return nil, false
		}
		return parsed, true
	}
	return nil, false
}

// GetChannelExports returns every channel/DM export blob keyed by its
// archive path, silently skipping entries that fail to parse as JSON
// (spec §4.9).
func (r *Reader) GetChannelExports() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	for path, data := range r.files {
		if !isChannelPath(path) {
			continue
		}
		var parsed map[string]interface{}
		if err := jsonAPI.Unmarshal(data, &parsed); err != nil {
			continue
		}
		out[path] = parsed
	}
	return out
}

func isChannelPath(path string) bool {
	if !strings.HasSuffix(path, ".json") {
		return false
	}
	return strings.HasPrefix(path, "channels/") || strings.HasPrefix(path, "dms/")
}

// GetServerMeta returns the raw server.json blob, if present.
func (r *Reader) GetServerMeta() ([]byte, bool) {
	data, ok := r.files["server.json"]
	return data, ok
}

// GetAuditLog returns the raw audit-log.json blob, if present. The audit
// log is schema-free (spec §9), so this returns the exact bytes rather
// than imposing a parsed shape.
func (r *Reader) GetAuditLog() ([]byte, bool) {
	data, ok := r.files["audit-log.json"]
	return data, ok
}

// GetAttachment returns the raw bytes at fullPath (e.g.
// "attachments/att-001.bin"), if present.
func (r *Reader) GetAttachment(fullPath string) ([]byte, bool) {
	data, ok := r.files[fullPath]
	return data, ok
}

// VerifyResult is the outcome of Reader.Verify: a pass/fail flag plus a
// human-readable list of every discrepancy found. Verify never returns an
// error — integrity problems are all accumulated into Issues (spec §4.9,
// §7).
type VerifyResult struct {
	Valid  bool
	Issues []string
}

// Verify recomputes every file's hash against the manifest and, if a
// user_signature is present, checks it against exported_by.identity_key.
func (r *Reader) Verify() VerifyResult {
	var issues []string

	for path, entry := range r.Manifest.Files {
		data, ok := r.files[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("Missing file: %s", path))
			continue
		}
		if int64(len(data)) != entry.Size {
			issues = append(issues, fmt.Sprintf("Size mismatch for %s: expected %d, got %d", path, entry.Size, len(data)))
		}
		actual := computeFileHash(data)
		if actual != entry.SHA256 {
			issues = append(issues, fmt.Sprintf("Hash mismatch for %s: expected %s, got %s", path, entry.SHA256, actual))
		}
	}

	if r.Manifest.UserSignature != "" {
		pub, err := identity.ParsePublicKeyBase64(r.Manifest.ExportedBy.IdentityKey)
		if err != nil || !VerifyManifest(r.Manifest, r.Manifest.UserSignature, pub) {
			issues = append(issues, "User signature verification failed")
		}
	}

	return VerifyResult{Valid: len(issues) == 0, Issues: issues}
}
