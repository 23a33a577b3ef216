package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// canonicalManifest produces the deterministic byte representation of m
// used as the signing/verifying input (spec §4.10): both signature fields
// removed, then serialized as JSON with top-level keys sorted ascending by
// Unicode code point.
//
// Only the top level is re-sorted. Nested objects retain whatever order
// encoding/json produces for them — struct field declaration order for
// Exporter/DateRange/FileEntry, and alphabetical order for the Files map,
// since Go's encoding/json always sorts map keys. This matches the
// reference behavior spec §9's open question describes: a signer and
// verifier that both go through this same function will always agree, but
// a reimplementation that orders the Files map differently before handing
// it to a generic sorted-JSON encoder would not produce byte-identical
// output. We don't attempt full recursive canonicalization because the
// spec explicitly calls out the shallow-sort behavior as the reference.
func canonicalManifest(m Manifest) ([]byte, error) {
	m.UserSignature = ""
	m.ServerSignature = ""

	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errManifestEncode, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errManifestEncode, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errManifestEncode, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
