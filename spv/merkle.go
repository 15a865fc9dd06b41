package spv

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/palomachain/peg/pegerrors"
)

// MerkleProof is the inclusion proof for a single transaction within a
// block (spec.md §4.D): the header height it claims to belong to, the
// sibling hashes along the Merkle branch from the leaf to the root, and
// the leaf's index within the block (used to decide, at each level,
// whether the sibling is the left or right hash).
type MerkleProof struct {
	Height   uint32
	Index    uint32
	Siblings []chainhash.Hash
}

// VerifyMerkleProof recomputes the Merkle root for txid under proof and
// checks it against root. It fails BadProof if the recomputed root does
// not match.
func VerifyMerkleProof(txid chainhash.Hash, proof MerkleProof, root chainhash.Hash) error {
	current := txid
	index := proof.Index
	for _, sibling := range proof.Siblings {
		if index%2 == 0 {
			current = hashMerkleBranches(current, sibling)
		} else {
			current = hashMerkleBranches(sibling, current)
		}
		index /= 2
	}
	if current != root {
		return pegerrors.New(pegerrors.ErrBadProof, "recomputed merkle root does not match the header's merkle root", nil)
	}
	return nil
}

// hashMerkleBranches combines two Merkle tree nodes with Bitcoin's
// double-SHA256 concatenation rule.
func hashMerkleBranches(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}
