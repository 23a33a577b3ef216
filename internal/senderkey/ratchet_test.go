package senderkey

import "testing"

func TestDeriveStepProducesDistinctKeys(t *testing.T) {
	var chainKey [ChainKeySize]byte
	for i := range chainKey {
		chainKey[i] = byte(i)
	}

	messageKey, nextChainKey := deriveStep(chainKey)
	if messageKey == nextChainKey {
		t.Fatal("message key and next chain key must differ under distinct domain separators")
	}
	if nextChainKey == chainKey {
		t.Fatal("next chain key must differ from the input chain key")
	}
}

func TestAdvanceIsDeterministic(t *testing.T) {
	stateA := &State{ChainKey: [ChainKeySize]byte{1, 2, 3}}
	stateB := &State{ChainKey: [ChainKeySize]byte{1, 2, 3}}

	keyA := advance(stateA)
	keyB := advance(stateB)

	if keyA != keyB {
		t.Fatal("advance must be a deterministic function of the chain key")
	}
	if stateA.ChainKey != stateB.ChainKey {
		t.Fatal("two states with identical chain keys must ratchet to identical next chain keys")
	}
	if stateA.ChainIndex != 1 || stateB.ChainIndex != 1 {
		t.Fatal("advance must increment chain_index by exactly one")
	}
}
