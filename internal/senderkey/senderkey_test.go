package senderkey_test

import (
	"fmt"
	"testing"

	"github.com/jaydenbeard/haven/internal/identity"
	"github.com/jaydenbeard/haven/internal/senderkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesDistinctState(t *testing.T) {
	a, err := senderkey.Generate()
	require.NoError(t, err)
	b, err := senderkey.Generate()
	require.NoError(t, err)

	assert.Len(t, a.DistributionID, senderkey.DistributionIDSize)
	assert.Len(t, a.ChainKey, senderkey.ChainKeySize)
	assert.EqualValues(t, 0, a.ChainIndex)

	assert.NotEqual(t, a.DistributionID, b.DistributionID)
	assert.NotEqual(t, a.ChainKey, b.ChainKey)
}

func TestSKDMPayloadRoundTrip(t *testing.T) {
	s, err := senderkey.Generate()
	require.NoError(t, err)
	s.ChainIndex = 42

	payload := senderkey.CreateSKDMPayload(s)
	require.Len(t, payload, senderkey.SKDMPayloadSize)

	parsed, err := senderkey.ParseSKDMPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, s.DistributionID, parsed.DistributionID)
	assert.Equal(t, s.ChainKey, parsed.ChainKey)
	assert.Equal(t, s.ChainIndex, parsed.ChainIndex)
}

func TestParseSKDMPayloadTooShort(t *testing.T) {
	_, err := senderkey.ParseSKDMPayload(make([]byte, senderkey.SKDMPayloadSize-1))
	assert.ErrorIs(t, err, senderkey.ErrSkdmTooShort)
}

func TestParseSKDMPayloadIgnoresTrailingBytes(t *testing.T) {
	s, err := senderkey.Generate()
	require.NoError(t, err)
	payload := append(senderkey.CreateSKDMPayload(s), 0xFF, 0xFF, 0xFF)

	parsed, err := senderkey.ParseSKDMPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, s.DistributionID, parsed.DistributionID)
}

// S1 — single message round trip through a self-decrypt clone.
func TestEncryptDecryptSingleMessage(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	wire, err := senderkey.Encrypt(state, []byte("hello group"))
	require.NoError(t, err)

	assert.Equal(t, senderkey.WireType, wire[0])
	assert.Equal(t, state.DistributionID[:], wire[1:17])
	assert.EqualValues(t, 1, state.ChainIndex)

	plaintext, err := senderkey.Decrypt(clone, wire)
	require.NoError(t, err)
	assert.Equal(t, "hello group", string(plaintext))
	assert.EqualValues(t, 1, clone.ChainIndex)
}

// S2 — ten sequential messages, decrypted in order.
func TestSequentialMessagesInOrder(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	for i := 0; i < 10; i++ {
		wire, err := senderkey.Encrypt(state, []byte(fmt.Sprintf("message %d", i)))
		require.NoError(t, err)

		plaintext, err := senderkey.Decrypt(clone, wire)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("message %d", i), string(plaintext))
	}

	assert.EqualValues(t, 10, state.ChainIndex)
	assert.EqualValues(t, 10, clone.ChainIndex)
}

// S3 — 100-message catch-up: only the last message is ever decrypted.
func TestCatchUpAcrossHundredMessages(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	var last []byte
	for i := 0; i < 100; i++ {
		wire, err := senderkey.Encrypt(state, []byte(fmt.Sprintf("msg-%d", i)))
		require.NoError(t, err)
		last = wire
	}

	plaintext, err := senderkey.Decrypt(clone, last)
	require.NoError(t, err)
	assert.Equal(t, "msg-99", string(plaintext))
	assert.EqualValues(t, 100, clone.ChainIndex)
}

func TestMaxSkipBoundary(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	var atMaxSkip, oneOverMaxSkip []byte
	for i := 0; i <= senderkey.MaxSkip+1; i++ {
		wire, err := senderkey.Encrypt(state, []byte(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		if i == senderkey.MaxSkip {
			atMaxSkip = wire
		}
		if i == senderkey.MaxSkip+1 {
			oneOverMaxSkip = wire
		}
	}

	_, err = senderkey.Decrypt(clone, atMaxSkip)
	require.NoError(t, err, "skip of exactly MaxSkip must succeed")
	assert.EqualValues(t, senderkey.MaxSkip+1, clone.ChainIndex)

	freshClone := state.Clone()
	freshClone.ChainIndex = 0
	_, err = senderkey.Decrypt(freshClone, oneOverMaxSkip)
	assert.ErrorIs(t, err, senderkey.ErrTooManySkipped)
}

func TestAlreadyConsumedRejected(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	wire1, err := senderkey.Encrypt(state, []byte("first"))
	require.NoError(t, err)
	wire2, err := senderkey.Encrypt(state, []byte("second"))
	require.NoError(t, err)

	_, err = senderkey.Decrypt(clone, wire2)
	require.NoError(t, err)

	_, err = senderkey.Decrypt(clone, wire1)
	assert.ErrorIs(t, err, senderkey.ErrAlreadyConsumed)
}

func TestWrongTypeRejected(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	wire, err := senderkey.Encrypt(state, []byte("hi"))
	require.NoError(t, err)
	wire[0] = 0x01

	_, err = senderkey.Decrypt(clone, wire)
	assert.ErrorIs(t, err, senderkey.ErrWrongType)
}

func TestDistIDMismatchRejected(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	other, err := senderkey.Generate()
	require.NoError(t, err)

	wire, err := senderkey.Encrypt(state, []byte("hi"))
	require.NoError(t, err)

	_, err = senderkey.Decrypt(other, wire)
	assert.ErrorIs(t, err, senderkey.ErrDistIDMismatch)
}

func TestTamperingAfterNonceBreaksDecryption(t *testing.T) {
	state, err := senderkey.Generate()
	require.NoError(t, err)
	clone := state.Clone()

	wire, err := senderkey.Encrypt(state, []byte("tamper me"))
	require.NoError(t, err)

	tampered := append([]byte(nil), wire...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = senderkey.Decrypt(clone, tampered)
	assert.ErrorIs(t, err, senderkey.ErrDecryptFailed)
}

// S6 — an SKDM sealed to Alice cannot be opened by Bob.
func TestSKDMCrossKeyRejection(t *testing.T) {
	alice, err := identity.Generate()
	require.NoError(t, err)
	bob, err := identity.Generate()
	require.NoError(t, err)

	state, err := senderkey.Generate()
	require.NoError(t, err)
	payload := senderkey.CreateSKDMPayload(state)

	sealed, err := senderkey.EncryptSKDM(payload, alice.Public)
	require.NoError(t, err)

	_, err = senderkey.DecryptSKDM(sealed, bob)
	assert.ErrorIs(t, err, senderkey.ErrSkdmDecryptFailed)

	opened, err := senderkey.DecryptSKDM(sealed, alice)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}
