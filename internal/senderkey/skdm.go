package senderkey

import "encoding/binary"

// SKDMPayloadSize is the fixed wire size of a Sender-Key Distribution
// Message payload: distribution_id(16) || chain_key(32) || chain_index(4).
const SKDMPayloadSize = DistributionIDSize + ChainKeySize + 4

// CreateSKDMPayload serializes a sender-key state into the fixed 52-byte
// SKDM payload (spec §4.2).
func CreateSKDMPayload(s *State) []byte {
	buf := make([]byte, SKDMPayloadSize)
	copy(buf[0:16], s.DistributionID[:])
	copy(buf[16:48], s.ChainKey[:])
	binary.LittleEndian.PutUint32(buf[48:52], s.ChainIndex)
	return buf
}

// ParseSKDMPayload parses an SKDM payload back into a State. Any bytes
// beyond the first 52 are ignored, matching the reference behavior
// described in spec §4.2.
func ParseSKDMPayload(payload []byte) (*State, error) {
	if len(payload) < SKDMPayloadSize {
		return nil, ErrSkdmTooShort
	}
	s := &State{}
	copy(s.DistributionID[:], payload[0:16])
	copy(s.ChainKey[:], payload[16:48])
	s.ChainIndex = binary.LittleEndian.Uint32(payload[48:52])
	return s, nil
}
