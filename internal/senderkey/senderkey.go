package senderkey

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// Encrypt advances state by one ratchet step and frames the ciphertext as
// a wire message (spec §4.5). The message key derived for this step is
// never retained — only the advanced chain key and index survive.
func Encrypt(state *State, plaintext []byte) ([]byte, error) {
	messageKey := advance(state)

	var nonce [WireNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("senderkey: generate nonce: %w", err)
	}

	ciphertext := secretbox.Seal(nil, plaintext, &nonce, &messageKey)

	// chain_index has already been incremented by advance(); the wire
	// frame carries the pre-advance index, which is state.ChainIndex-1.
	return frameWire(state.DistributionID, state.ChainIndex-1, nonce, ciphertext), nil
}

// Decrypt opens a wire message against a receiver's ratchet state (spec
// §4.6). The receiver is advanced forward to match the message's
// chain_index, skipping and discarding intermediate message keys, then the
// final derived key opens the AEAD. The receiver never moves backward and
// never buffers out-of-order messages.
func Decrypt(received *State, wire []byte) ([]byte, error) {
	hdr, ciphertext, err := parseWire(wire)
	if err != nil {
		return nil, err
	}

	if hdr.distributionID != received.DistributionID {
		return nil, ErrDistIDMismatch
	}

	skip := int64(hdr.chainIndex) - int64(received.ChainIndex)
	if skip < 0 {
		return nil, ErrAlreadyConsumed
	}
	if skip > MaxSkip {
		return nil, ErrTooManySkipped
	}

	var messageKey [ChainKeySize]byte
	for i := int64(0); i <= skip; i++ {
		messageKey = advance(received)
	}

	plaintext, ok := secretbox.Open(nil, ciphertext, &hdr.nonce, &messageKey)
	if !ok {
		// State is left advanced on purpose: a valid header with a bad
		// ciphertext is a permanent loss of that index (spec §4.6 step 4).
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
