// Package keyreg implements the signatory-key registry (spec.md §4.C):
// admission of secp256k1 key commitments, authenticated by the committing
// validator's ed25519 consensus key, and the committed-key map that backs
// the script assembler and signing coordinator.
package keyreg

import (
	"crypto/ed25519"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/palomachain/peg/pegerrors"
	"github.com/palomachain/peg/signatory"
)

// Commitment is the admitted SignatoryKey transaction payload (spec.md §6):
// an index into the current signatory set, the secp256k1 public key being
// committed, and an ed25519 signature over that key under the validator's
// consensus key.
type Commitment struct {
	SignatoryIndex uint32
	SecpPubKey     []byte // must be 33 bytes, compressed
	Signature      []byte // ed25519, 64 bytes
}

// Registry holds the committed-key map: consensus key -> compressed
// secp256k1 public key. Re-commitment silently overwrites the previous
// key (the latest wins), unless InFlight reports the signatory as bound to
// a live SigningTx signature slot, per DESIGN.md's Open Question 2
// resolution.
type Registry struct {
	committed map[signatory.ConsensusKey][]byte
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{committed: make(map[signatory.ConsensusKey][]byte)}
}

// InFlightChecker reports whether a consensus key currently has an
// outstanding (submitted, un-finalized) signature on the live SigningTx,
// in which case its key commitment must not be replaced mid-flight.
type InFlightChecker func(key signatory.ConsensusKey) bool

// Commit validates and admits a Commitment against the given signatory set.
// On success it returns the validator's consensus key and records the
// committed secp256k1 key in the registry.
//
// Validation (spec.md §4.C):
//  1. signatory_index must be a valid index into set.
//  2. secp256k1_pubkey must be 33 bytes and a valid compressed point.
//  3. ed25519_signature must verify secp256k1_pubkey under the consensus
//     key at that index.
//
// All failures are non-fatal and leave the registry unchanged.
func (r *Registry) Commit(set signatory.Set, c Commitment, inFlight InFlightChecker) (signatory.ConsensusKey, error) {
	entry, ok := set.At(int(c.SignatoryIndex))
	if !ok {
		return signatory.ConsensusKey{}, pegerrors.New(pegerrors.ErrBadIndex,
			"signatory_index is not valid for the current signatory set", nil)
	}

	if len(c.SecpPubKey) != signatory.PubKeySize {
		return signatory.ConsensusKey{}, pegerrors.New(pegerrors.ErrBadKeyFormat,
			"secp256k1 public key must be 33 bytes", nil)
	}
	if _, err := btcec.ParsePubKey(c.SecpPubKey); err != nil {
		return signatory.ConsensusKey{}, pegerrors.New(pegerrors.ErrBadKeyFormat,
			"secp256k1 public key does not decode to a valid compressed point", err)
	}

	if inFlight != nil && inFlight(entry.ConsensusKey) {
		return signatory.ConsensusKey{}, pegerrors.New(pegerrors.ErrKeyRecommitInFlight,
			"signatory has an outstanding signature on the live signing transaction", nil)
	}

	if !ed25519.Verify(entry.ConsensusKey[:], c.SecpPubKey, c.Signature) {
		return signatory.ConsensusKey{}, pegerrors.New(pegerrors.ErrBadSignature,
			"ed25519 signature does not verify under the validator's consensus key", nil)
	}

	r.committed[entry.ConsensusKey] = append([]byte(nil), c.SecpPubKey...)
	return entry.ConsensusKey, nil
}

// Get returns the committed secp256k1 key for a consensus key, if any.
func (r *Registry) Get(key signatory.ConsensusKey) ([]byte, bool) {
	pk, ok := r.committed[key]
	return pk, ok
}

// Snapshot returns a copy of the full committed-key map, suitable for
// passing to signatory.Set.WithSignatories.
func (r *Registry) Snapshot() map[signatory.ConsensusKey][]byte {
	out := make(map[signatory.ConsensusKey][]byte, len(r.committed))
	for k, v := range r.committed {
		out[k] = v
	}
	return out
}
