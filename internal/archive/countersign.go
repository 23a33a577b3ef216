package archive

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/jaydenbeard/haven/internal/metrics"
)

// Countersign opens an already-built `.haven` archive, runs the same
// integrity and user-signature checks Reader.Verify performs, adds (or
// replaces) the server_signature field with serverKey's signature over
// the canonical manifest, and repacks the archive with the updated
// manifest. It never touches the user_signature field or the archived
// file contents: havenserver countersigns custody of an export, it
// doesn't re-derive it. An archive that fails verification is rejected
// rather than countersigned.
func Countersign(data []byte, serverKey ed25519.PrivateKey) ([]byte, error) {
	r, err := Open(data)
	if err != nil {
		return nil, fmt.Errorf("archive: open archive to countersign: %w", err)
	}

	result := r.Verify()
	metrics.RecordArchiveVerification(result.Valid)
	if !result.Valid {
		return nil, fmt.Errorf("archive: countersign target failed verification: %s", strings.Join(result.Issues, "; "))
	}

	manifest := r.Manifest
	manifest.ServerSignature = ""
	sig, err := SignManifest(manifest, serverKey)
	if err != nil {
		return nil, fmt.Errorf("archive: sign manifest for countersigning: %w", err)
	}
	manifest.ServerSignature = sig

	manifestBytes, err := marshalManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal countersigned manifest: %w", err)
	}

	files := make(map[string][]byte, len(r.files))
	for path, blob := range r.files {
		files[path] = blob
	}
	files["manifest.json"] = manifestBytes

	return packZip(files)
}
