package core

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// fingerprintMode encodes with Core Deterministic Encoding, so map order never affects the
// fingerprint.
var fingerprintMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: core deterministic mode: %v", err))
	}
	return em
}()

// EncodeState serializes the state in deterministic CBOR.
func EncodeState(s *State) ([]byte, error) {
	data, err := fingerprintMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// ComputeStateFingerprint hashes the deterministic encoding of the state.
//
// Formula: hex(BLAKE3(CoreDetCBOR(state)))
//
// Two states with the same contents always share a fingerprint, which is what lets the store
// skip notifying subscribers after a refresh that changed nothing.
func ComputeStateFingerprint(s *State) (string, error) {
	data, err := EncodeState(s)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
