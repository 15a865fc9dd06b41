package signatory

// PubKeySize is the length in bytes of a compressed secp256k1 public key
// (spec.md §6, SIGNATORY_KEY_LENGTH).
const PubKeySize = 33

// Signatory is a validator that has committed a secp256k1 public key usable
// to sign Bitcoin disbursals (spec.md §3). SecpPubKey is nil until the
// validator has committed a key via keyreg.
type Signatory struct {
	Entry
	SecpPubKey []byte // 33-byte compressed secp256k1 point, or nil
}

// Set is the signatory set produced by freezing a selector result together
// with the committed-key map at that moment (spec.md §3). It is a value
// type: once built, a Set is never mutated in place. A new validator map or
// a new key commitment produces a brand new Set (see rotation.Rotator).
type Set struct {
	entries []Entry
}

// NewSet freezes the given ranked, truncated entries into a Set.
func NewSet(entries []Entry) Set {
	frozen := make([]Entry, len(entries))
	copy(frozen, entries)
	return Set{entries: frozen}
}

// Entries returns the set's ranked entries, in selector order.
func (s Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of signatories in the set.
func (s Set) Len() int {
	return len(s.entries)
}

// Threshold returns the weighted two-thirds threshold for this set.
func (s Set) Threshold() uint64 {
	return Threshold(s.entries)
}

// IndexOf returns the position of consensusKey in the set, and whether it
// was found.
func (s Set) IndexOf(consensusKey ConsensusKey) (int, bool) {
	for i, e := range s.entries {
		if e.ConsensusKey == consensusKey {
			return i, true
		}
	}
	return -1, false
}

// At returns the entry at the given index.
func (s Set) At(index int) (Entry, bool) {
	if index < 0 || index >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[index], true
}

// WithSignatories resolves secp256k1 keys for this set's entries from a
// committed-key map (consensus key -> compressed pubkey), returning a
// Signatories view used by the script assembler and signing coordinator.
// Entries with no committed key yield a nil SecpPubKey, meaning that
// signatory's CHECKSIG branch can never succeed until it commits a key.
func (s Set) WithSignatories(committed map[ConsensusKey][]byte) []Signatory {
	out := make([]Signatory, len(s.entries))
	for i, e := range s.entries {
		out[i] = Signatory{Entry: e, SecpPubKey: committed[e.ConsensusKey]}
	}
	return out
}
