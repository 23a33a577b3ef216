package archive

import jsoniter "github.com/json-iterator/go"

// jsonAPI is the external JSON library spec §1 names for structural
// encode/decode of everything except the canonical-manifest signing bytes
// (see canonical.go for why that one path stays on encoding/json).
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// marshalManifest pretty-prints a manifest with two-space indentation
// (spec §4.8 step 5).
func marshalManifest(m Manifest) ([]byte, error) {
	return jsonAPI.MarshalIndent(m, "", "  ")
}

// unmarshalManifest parses manifest.json bytes back into a Manifest.
func unmarshalManifest(data []byte) (Manifest, error) {
	var m Manifest
	err := jsonAPI.Unmarshal(data, &m)
	return m, err
}
