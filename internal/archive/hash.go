package archive

import (
	"crypto/sha256"
	"encoding/hex"
)

// computeFileHash returns the lowercase hex-encoded SHA-256 digest of data
// (spec §4.11).
func computeFileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
