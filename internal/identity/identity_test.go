package identity_test

import (
	"testing"

	"github.com/jaydenbeard/haven/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesUsableKeyPair(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)
	assert.Len(t, kp.Public, 32)
	assert.Len(t, kp.Private, 64)
}

func TestPublicKeyBase64RoundTrip(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	encoded := identity.PublicKeyBase64(kp.Public)
	decoded, err := identity.ParsePublicKeyBase64(encoded)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, decoded)
}

func TestParsePublicKeyBase64RejectsWrongLength(t *testing.T) {
	_, err := identity.ParsePublicKeyBase64("c2hvcnQ=") // "short", not 32 bytes
	assert.Error(t, err)
}

func TestX25519ConversionProducesDistinctCurvePoints(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	pub, err := identity.ToX25519Public(kp.Public)
	require.NoError(t, err)
	priv, err := identity.ToX25519Private(kp.Private)
	require.NoError(t, err)

	assert.NotEqual(t, [32]byte{}, pub)
	assert.NotEqual(t, [32]byte{}, priv)
}

func TestFingerprintIsDeterministicAndFormatted(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	a := identity.Fingerprint(kp.Public)
	b := identity.Fingerprint(kp.Public)
	assert.Equal(t, a, b)
	assert.Len(t, a, 60)

	formatted := identity.FormatFingerprint(a)
	assert.Contains(t, formatted, "\n")
}
