package rotation

import (
	"crypto/ed25519"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/palomachain/peg/internal/pegcfg"
	"github.com/palomachain/peg/keyreg"
	"github.com/palomachain/peg/signatory"
)

func commitKey(t *testing.T, registry *keyreg.Registry, set signatory.Set, index uint32, consensusPriv ed25519.PrivateKey) {
	t.Helper()
	var seed [32]byte
	seed[31] = byte(index + 1)
	_, pub := btcec.PrivKeyFromBytes(seed[:])
	pubBytes := pub.SerializeCompressed()
	sig := ed25519.Sign(consensusPriv, pubBytes)
	_, err := registry.Commit(set, keyreg.Commitment{
		SignatoryIndex: index,
		SecpPubKey:     pubBytes,
		Signature:      sig,
	}, nil)
	require.NoError(t, err)
}

func testConfig() pegcfg.Config {
	return pegcfg.Config{Network: pegcfg.NetworkRegtest, MaxSignatories: 76}
}

func TestRotateProducesStableAddressForSameInput(t *testing.T) {
	pubB, privB, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var ckB signatory.ConsensusKey
	copy(ckB[:], pubB)

	validators := []signatory.Validator{{ConsensusKey: ckB, VotingPower: 10}}

	r1 := New(testConfig())
	registry1 := keyreg.New()
	entries := signatory.Select(validators, 76)
	set1 := signatory.NewSet(entries)
	commitKey(t, registry1, set1, 0, privB)
	snap1, err := r1.Rotate(validators, registry1)
	require.NoError(t, err)

	r2 := New(testConfig())
	registry2 := keyreg.New()
	set2 := signatory.NewSet(signatory.Select(validators, 76))
	commitKey(t, registry2, set2, 0, privB)
	snap2, err := r2.Rotate(validators, registry2)
	require.NoError(t, err)

	require.Equal(t, snap1.Address.EncodeAddress(), snap2.Address.EncodeAddress())
}

func TestRotateChangesAddressAndArchivesPrior(t *testing.T) {
	pubB, privB, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var ckB signatory.ConsensusKey
	copy(ckB[:], pubB)

	pubA, privA, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var ckA signatory.ConsensusKey
	copy(ckA[:], pubA)

	r := New(testConfig())
	registry := keyreg.New()

	validatorsBOnly := []signatory.Validator{{ConsensusKey: ckB, VotingPower: 10}}
	set1 := signatory.NewSet(signatory.Select(validatorsBOnly, 76))
	commitKey(t, registry, set1, 0, privB)
	snap1, err := r.Rotate(validatorsBOnly, registry)
	require.NoError(t, err)
	addr1 := snap1.Address.EncodeAddress()

	// Add validator A with power 10; both validators commit keys against
	// the new, larger set before the second rotation.
	validatorsBoth := []signatory.Validator{
		{ConsensusKey: ckB, VotingPower: 10},
		{ConsensusKey: ckA, VotingPower: 10},
	}
	set2 := signatory.NewSet(signatory.Select(validatorsBoth, 76))
	idxB, ok := set2.IndexOf(ckB)
	require.True(t, ok)
	idxA, ok := set2.IndexOf(ckA)
	require.True(t, ok)
	commitKey(t, registry, set2, uint32(idxB), privB)
	commitKey(t, registry, set2, uint32(idxA), privA)

	snap2, err := r.Rotate(validatorsBoth, registry)
	require.NoError(t, err)
	addr2 := snap2.Address.EncodeAddress()

	require.NotEqual(t, addr1, addr2)

	// The prior address remains queryable for inflight UTXOs.
	archived, ok := r.ArchivedAt(addr1)
	require.True(t, ok)
	require.Equal(t, addr1, archived.Address.EncodeAddress())

	require.Equal(t, addr2, r.Current().Address.EncodeAddress())
	require.True(t, r.IsTracked(archived.PkScript))
	require.True(t, r.IsTracked(snap2.PkScript))
}

func TestRotateFailsOnEmptyValidatorSet(t *testing.T) {
	r := New(testConfig())
	registry := keyreg.New()
	_, err := r.Rotate(nil, registry)
	require.Error(t, err)
}
