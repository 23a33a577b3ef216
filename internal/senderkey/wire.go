package senderkey

import "encoding/binary"

const (
	// WireType is the single message type this wire format carries.
	WireType byte = 0x03

	// WireHeaderSize is the length of the fixed-size prefix before the
	// nonce and ciphertext: type(1) || distribution_id(16) || chain_index(4).
	WireHeaderSize = 1 + DistributionIDSize + 4

	// WireNonceSize is the secretbox nonce length.
	WireNonceSize = 24

	// WireMinSize is the minimum total size of a wire message: header +
	// nonce + a zero-length ciphertext's 16-byte AEAD tag.
	WireMinSize = WireHeaderSize + WireNonceSize + 16
)

// frameWire assembles the byte-exact wire format from spec §6:
// type(1) || distribution_id(16) || chain_index(4, LE) || nonce(24) || ciphertext+tag.
func frameWire(distributionID [DistributionIDSize]byte, chainIndex uint32, nonce [WireNonceSize]byte, ciphertext []byte) []byte {
	out := make([]byte, 0, WireHeaderSize+WireNonceSize+len(ciphertext))
	out = append(out, WireType)
	out = append(out, distributionID[:]...)

	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], chainIndex)
	out = append(out, idxBuf[:]...)

	out = append(out, nonce[:]...)
	out = append(out, ciphertext...)
	return out
}

// wireHeader is the parsed fixed-size prefix of a wire message.
type wireHeader struct {
	distributionID [DistributionIDSize]byte
	chainIndex     uint32
	nonce          [WireNonceSize]byte
}

// parseWire splits a wire message into its header, nonce, and ciphertext,
// validating only the type byte and minimum length — distribution_id and
// chain_index matching against a particular receiver is the caller's job.
func parseWire(wire []byte) (wireHeader, []byte, error) {
	var hdr wireHeader
	if len(wire) < WireMinSize {
		return hdr, nil, ErrWireTooShort
	}
	if wire[0] != WireType {
		return hdr, nil, ErrWrongType
	}
	copy(hdr.distributionID[:], wire[1:17])
	hdr.chainIndex = binary.LittleEndian.Uint32(wire[17:21])
	copy(hdr.nonce[:], wire[21:45])
	return hdr, wire[45:], nil
}
