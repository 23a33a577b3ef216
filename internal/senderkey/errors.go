package senderkey

import "errors"

// Error kinds from spec §7. Each is returned verbatim (via errors.Is) so
// callers can branch on the failure without string matching.
var (
	// ErrSkdmTooShort is returned by ParseSKDMPayload when the buffer is
	// shorter than the fixed 52-byte SKDM layout.
	ErrSkdmTooShort = errors.New("senderkey: skdm payload too short")

	// ErrSkdmDecryptFailed is returned by DecryptSKDM when the sealed box
	// cannot be opened with the recipient's identity keypair.
	ErrSkdmDecryptFailed = errors.New("senderkey: skdm sealed box decryption failed")

	// ErrWrongType is returned when a wire message's type byte isn't 0x03.
	ErrWrongType = errors.New("senderkey: wrong wire message type")

	// ErrDistIDMismatch is returned when a wire message's distribution_id
	// doesn't match the receiver's.
	ErrDistIDMismatch = errors.New("senderkey: distribution id mismatch")

	// ErrAlreadyConsumed is returned when a wire message's chain_index is
	// behind the receiver's current chain_index.
	ErrAlreadyConsumed = errors.New("senderkey: message index already consumed")

	// ErrTooManySkipped is returned when catching up to a wire message's
	// chain_index would require skipping more than MaxSkip steps.
	ErrTooManySkipped = errors.New("senderkey: too many skipped messages")

	// ErrDecryptFailed is returned when the secretbox AEAD check fails.
	ErrDecryptFailed = errors.New("senderkey: message decryption failed")

	// ErrWireTooShort is returned when a wire message is shorter than the
	// minimum 61-byte framing.
	ErrWireTooShort = errors.New("senderkey: wire message too short")
)
