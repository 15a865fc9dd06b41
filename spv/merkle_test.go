package spv

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func leafHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestVerifyMerkleProofSingleLeaf(t *testing.T) {
	txid := leafHash(1)
	require.NoError(t, VerifyMerkleProof(txid, MerkleProof{Index: 0}, txid))
}

func TestVerifyMerkleProofFourLeaves(t *testing.T) {
	l0, l1, l2, l3 := leafHash(1), leafHash(2), leafHash(3), leafHash(4)
	h01 := hashMerkleBranches(l0, l1)
	h23 := hashMerkleBranches(l2, l3)
	root := hashMerkleBranches(h01, h23)

	// l0 is a left leaf at every level: siblings are [l1, h23].
	require.NoError(t, VerifyMerkleProof(l0, MerkleProof{Index: 0, Siblings: []chainhash.Hash{l1, h23}}, root))
	// l2 is a left leaf at level 0 but the right branch at level 1: siblings [l3, h01].
	require.NoError(t, VerifyMerkleProof(l2, MerkleProof{Index: 2, Siblings: []chainhash.Hash{l3, h01}}, root))
	// l3 is a right leaf at every level: siblings [l2, h01].
	require.NoError(t, VerifyMerkleProof(l3, MerkleProof{Index: 3, Siblings: []chainhash.Hash{l2, h01}}, root))
}

func TestVerifyMerkleProofRejectsWrongRoot(t *testing.T) {
	l0, l1 := leafHash(1), leafHash(2)
	var wrongRoot chainhash.Hash
	wrongRoot[0] = 0xFF
	err := VerifyMerkleProof(l0, MerkleProof{Index: 0, Siblings: []chainhash.Hash{l1}}, wrongRoot)
	require.Error(t, err)
}
