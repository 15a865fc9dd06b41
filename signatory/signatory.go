// Package signatory implements the signatory-set selector (spec.md §4.A):
// deterministic ranking and truncation of the validator set, and the
// weighted two-thirds threshold computed over it.
package signatory

import (
	"bytes"
	"sort"
)

// ConsensusKey is a validator's ed25519 public key.
type ConsensusKey [32]byte

// Validator is a consensus participant identified by its consensus key,
// carrying an integer voting power (spec.md §3).
type Validator struct {
	ConsensusKey ConsensusKey
	VotingPower  uint64
}

// Entry is one ranked, truncated member of a signatory set: a validator's
// consensus key and voting power, with voting power already known to fit
// uint32 (spec.md §3's invariant).
type Entry struct {
	ConsensusKey ConsensusKey
	VotingPower  uint32
}

// Select deterministically ranks the given validator map and truncates it to
// maxSignatories entries. The sort key is (-voting_power, -consensus_key)
// under byte-lexicographic comparison on the key, so ties are broken by
// descending consensus key (spec.md §4.A, Testable Property 1 and E6).
//
// Select never mutates validators and always produces a byte-identical
// result for the same input map regardless of iteration order, since Go map
// iteration order is randomized and callers must not rely on it.
func Select(validators []Validator, maxSignatories uint32) []Entry {
	ranked := make([]Validator, len(validators))
	copy(ranked, validators)

	sort.Slice(ranked, func(i, j int) bool {
		vi, vj := ranked[i].VotingPower, ranked[j].VotingPower
		if vi != vj {
			return vi > vj
		}
		return bytes.Compare(ranked[i].ConsensusKey[:], ranked[j].ConsensusKey[:]) > 0
	})

	if uint32(len(ranked)) > maxSignatories {
		ranked = ranked[:maxSignatories]
	}

	entries := make([]Entry, len(ranked))
	for i, v := range ranked {
		entries[i] = Entry{
			ConsensusKey: v.ConsensusKey,
			VotingPower:  uint32(v.VotingPower),
		}
	}
	return entries
}

// Threshold computes ceil(2*sum(votingPower)/3) over the given entries, the
// value the witness script of spec.md §4.B compares the cumulative weight of
// successful CHECKSIG branches against. The script ends in OP_GREATERTHAN,
// so it evaluates true only when that weight exceeds the threshold.
func Threshold(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += uint64(e.VotingPower)
	}
	return ceilDiv(2*total, 3)
}

func ceilDiv(numerator, denominator uint64) uint64 {
	if denominator == 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}

// TotalVotingPower sums the voting power of the given entries.
func TotalVotingPower(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += uint64(e.VotingPower)
	}
	return total
}
