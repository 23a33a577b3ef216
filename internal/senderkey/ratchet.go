package senderkey

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Domain separators for HMAC-SHA-256 chain derivation (spec §4.4). Using
// distinct one-byte constants for the message key and the next chain key
// guarantees the two outputs are independent even though they're derived
// from the same input.
const (
	messageKeyLabel   = 0x01
	nextChainKeyLabel = 0x02
)

// deriveStep computes the per-message key and the next chain key from the
// current chain key, both via HMAC-SHA-256 keyed on chainKey.
func deriveStep(chainKey [ChainKeySize]byte) (messageKey, nextChainKey [ChainKeySize]byte) {
	mac := hmac.New(sha256.New, chainKey[:])
	mac.Write([]byte{messageKeyLabel})
	copy(messageKey[:], mac.Sum(nil))

	mac = hmac.New(sha256.New, chainKey[:])
	mac.Write([]byte{nextChainKeyLabel})
	copy(nextChainKey[:], mac.Sum(nil))

	return messageKey, nextChainKey
}

// advance performs one ratchet step on s: it derives the message key for
// the current chain_index, overwrites the chain key, and increments the
// index. It returns the message key for the pre-advance index (spec §4.4).
func advance(s *State) [ChainKeySize]byte {
	messageKey, nextChainKey := deriveStep(s.ChainKey)
	s.ChainKey = nextChainKey
	s.ChainIndex++
	return messageKey
}
