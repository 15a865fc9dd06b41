package signatory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func key(b byte) ConsensusKey {
	var k ConsensusKey
	k[0] = b
	return k
}

func TestSelectDeterministic(t *testing.T) {
	validators := []Validator{
		{ConsensusKey: key(1), VotingPower: 10},
		{ConsensusKey: key(2), VotingPower: 20},
		{ConsensusKey: key(3), VotingPower: 20},
	}

	first := Select(validators, 76)

	// Property 1: permuting insertion order must not change the result.
	shuffled := make([]Validator, len(validators))
	copy(shuffled, validators)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second := Select(shuffled, 76)

	require.Equal(t, first, second)
}

func TestSelectTieBreakDescendingKey(t *testing.T) {
	// E6: {K1: 5, K2: 5} where K1 < K2 byte-lex -> select returns [K2, K1].
	validators := []Validator{
		{ConsensusKey: key(1), VotingPower: 5},
		{ConsensusKey: key(2), VotingPower: 5},
	}

	got := Select(validators, 76)
	require.Len(t, got, 2)
	require.Equal(t, key(2), got[0].ConsensusKey)
	require.Equal(t, key(1), got[1].ConsensusKey)
}

func TestSelectSortsByVotingPowerDescending(t *testing.T) {
	validators := []Validator{
		{ConsensusKey: key(1), VotingPower: 1},
		{ConsensusKey: key(2), VotingPower: 100},
		{ConsensusKey: key(3), VotingPower: 50},
	}

	got := Select(validators, 76)
	require.Equal(t, []uint32{100, 50, 1}, []uint32{got[0].VotingPower, got[1].VotingPower, got[2].VotingPower})
}

func TestSelectTruncatesToMax(t *testing.T) {
	validators := make([]Validator, 100)
	for i := range validators {
		validators[i] = Validator{ConsensusKey: key(byte(i)), VotingPower: uint64(i)}
	}

	got := Select(validators, 76)
	require.Len(t, got, 76)
}

func TestThresholdIsCeilTwoThirds(t *testing.T) {
	entries := []Entry{{VotingPower: 10}}
	// ceil(2*10/3) = ceil(6.66) = 7
	require.Equal(t, uint64(7), Threshold(entries))
}

func TestThresholdZeroWhenEmpty(t *testing.T) {
	require.Equal(t, uint64(0), Threshold(nil))
}

// Property 2: threshold monotonicity. If V' is a strict superset of V in
// voting power, the threshold for V' must be >= that for V.
func TestThresholdMonotonicity(t *testing.T) {
	base := []Validator{
		{ConsensusKey: key(1), VotingPower: 10},
		{ConsensusKey: key(2), VotingPower: 20},
	}
	grown := append(append([]Validator{}, base...), Validator{ConsensusKey: key(3), VotingPower: 5})

	tBase := Threshold(Select(base, 76))
	tGrown := Threshold(Select(grown, 76))

	require.GreaterOrEqual(t, tGrown, tBase)
}

func TestSetIndexOfAndAt(t *testing.T) {
	set := NewSet(Select([]Validator{
		{ConsensusKey: key(9), VotingPower: 1},
		{ConsensusKey: key(8), VotingPower: 2},
	}, 76))

	idx, ok := set.IndexOf(key(8))
	require.True(t, ok)
	require.Equal(t, 0, idx)

	_, ok = set.IndexOf(key(1))
	require.False(t, ok)

	entry, ok := set.At(0)
	require.True(t, ok)
	require.Equal(t, key(8), entry.ConsensusKey)

	_, ok = set.At(5)
	require.False(t, ok)
}

func TestSetWithSignatories(t *testing.T) {
	set := NewSet(Select([]Validator{
		{ConsensusKey: key(1), VotingPower: 1},
		{ConsensusKey: key(2), VotingPower: 2},
	}, 76))

	committed := map[ConsensusKey][]byte{key(2): make([]byte, PubKeySize)}
	sigs := set.WithSignatories(committed)

	require.Len(t, sigs, 2)
	require.NotNil(t, sigs[0].SecpPubKey) // key(2) ranks first (higher power)
	require.Nil(t, sigs[1].SecpPubKey)
}
