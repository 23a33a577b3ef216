package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseFrameRoundTrip(t *testing.T) {
	f := Frame{
		Kind:    KindMessage,
		From:    "sender-identity-key-b64",
		To:      "recipient-identity-key-b64",
		Payload: []byte("opaque ciphertext bytes"),
	}

	raw, err := encodeFrame(f)
	require.NoError(t, err)

	got, err := parseFrame(raw)
	require.NoError(t, err)

	assert.Equal(t, f.Kind, got.Kind)
	assert.Equal(t, f.From, got.From)
	assert.Equal(t, f.To, got.To)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestEncodeParseFrameBroadcast(t *testing.T) {
	f := Frame{
		Kind:    KindSKDM,
		From:    "sender-identity-key-b64",
		To:      "",
		Payload: []byte("sealed sender key distribution"),
	}

	raw, err := encodeFrame(f)
	require.NoError(t, err)

	got, err := parseFrame(raw)
	require.NoError(t, err)
	assert.Empty(t, got.To)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestEncodeFrameRejectsOversizedIdentityKey(t *testing.T) {
	f := Frame{
		Kind: KindAck,
		From: string(make([]byte, maxIdentityKeyLen+1)),
	}
	_, err := encodeFrame(f)
	assert.Error(t, err)
}

func TestParseFrameRejectsUnknownKind(t *testing.T) {
	raw := []byte{0xFF, 0, 0}
	_, err := parseFrame(raw)
	assert.Error(t, err)
}

func TestParseFrameRejectsTruncatedHeader(t *testing.T) {
	_, err := parseFrame([]byte{byte(KindMessage)})
	assert.Error(t, err)
}

func TestParseFrameRejectsTruncatedFromField(t *testing.T) {
	raw := []byte{byte(KindMessage), 10, 'a', 'b'}
	_, err := parseFrame(raw)
	assert.Error(t, err)
}

func TestCrossServerRoundTrip(t *testing.T) {
	f := Frame{
		Kind:    KindMessage,
		From:    "server-relayed-sender",
		To:      "server-relayed-recipient",
		Payload: []byte("forwarded across havenserver instances"),
	}

	raw := encodeCrossServer(f)
	got, err := decodeCrossServer(raw)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
