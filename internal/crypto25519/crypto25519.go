// Package crypto25519 provides the ed25519 seed-to-scalar derivation behind
// a validator's consensus key. Signatory-key commitments are verified by
// keyreg with crypto/ed25519, which does not call into this package. It
// exists as a documented, standalone primitive rather than an inline
// helper, per the "ad-hoc ed25519 key conversion" re-architecture note: an
// implementer must reproduce this exact derivation to remain compatible with
// existing committed keys.
package crypto25519

import (
	"crypto/sha512"
	"fmt"
)

// SeedSize is the length in bytes of an ed25519 private seed.
const SeedSize = 32

// ScalarSize is the length in bytes of a clamped ed25519 scalar.
const ScalarSize = 32

// ScalarFromSeed derives the clamped secret scalar for an ed25519 seed,
// following RFC 8032 and the ref10 reference implementation: the seed is
// hashed with SHA-512, the low half is taken as the scalar, and the
// standard clamping bits are applied (clear the low 3 bits, clear the top
// bit, set the second-highest bit).
//
// This is the same derivation performed internally by crypto/ed25519's
// NewKeyFromSeed; it is exposed here as a named primitive because the
// signatory-key commitment scheme signs over an ed25519 consensus key and
// must remain byte-compatible with it regardless of which ed25519 library
// computed the original key.
func ScalarFromSeed(seed []byte) ([ScalarSize]byte, error) {
	var scalar [ScalarSize]byte
	if len(seed) != SeedSize {
		return scalar, fmt.Errorf("crypto25519: seed must be %d bytes, got %d", SeedSize, len(seed))
	}

	digest := sha512.Sum512(seed)
	copy(scalar[:], digest[:ScalarSize])

	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	return scalar, nil
}
