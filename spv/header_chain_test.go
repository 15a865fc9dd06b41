package spv

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/palomachain/peg/internal/pegcfg"
	"github.com/palomachain/peg/pegerrors"
)

// regtestHeader builds a header linked to prev with the network's own
// proof-of-work floor as its Bits, and nonce chosen (offline, by brute
// force over the zero-value regtest genesis's descendants) to actually
// satisfy that target: regtest's floor is close to half of the entire
// 256-bit hash space, so small nonces succeed about half the time, but
// which ones succeed is a property of SHA-256 fixed at genesis and must be
// precomputed rather than asserted at random.
func regtestHeader(prev chainhash.Hash, nonce uint32) wire.BlockHeader {
	return wire.BlockHeader{
		PrevBlock: prev,
		Bits:      chaincfg.RegressionNetParams.PowLimitBits,
		Nonce:     nonce,
	}
}

func TestExtendHeadersFromGenesis(t *testing.T) {
	genesis := wire.BlockHeader{}
	chain := NewChain(genesis, 0, &chaincfg.RegressionNetParams, pegcfg.DefaultRegtest())
	require.Equal(t, uint32(0), chain.Tip())

	h1 := regtestHeader(genesis.BlockHash(), 1)
	require.NoError(t, chain.ExtendHeaders([]wire.BlockHeader{h1}, 0))
	require.Equal(t, uint32(1), chain.Tip())

	got, ok := chain.At(1)
	require.True(t, ok)
	require.Equal(t, h1.BlockHash(), got.Header.BlockHash())
}

func TestExtendHeadersRejectsBrokenLinkage(t *testing.T) {
	genesis := wire.BlockHeader{}
	chain := NewChain(genesis, 0, &chaincfg.RegressionNetParams, pegcfg.DefaultRegtest())

	var wrongPrev chainhash.Hash
	wrongPrev[0] = 0xFF
	bad := regtestHeader(wrongPrev, 0)

	err := chain.ExtendHeaders([]wire.BlockHeader{bad}, 0)
	require.Error(t, err)
}

func TestExtendHeadersRejectsUnknownAncestor(t *testing.T) {
	genesis := wire.BlockHeader{}
	chain := NewChain(genesis, 0, &chaincfg.RegressionNetParams, pegcfg.DefaultRegtest())

	h1 := regtestHeader(genesis.BlockHash(), 0)
	err := chain.ExtendHeaders([]wire.BlockHeader{h1}, 5)
	require.Error(t, err)
	require.Equal(t, pegerrors.ErrUnknownHeight, err.(pegerrors.PegError).Code)
}

func TestExtendHeadersRejectsExcessiveReorg(t *testing.T) {
	genesis := wire.BlockHeader{}
	cfg := pegcfg.DefaultRegtest()
	cfg.MaxReorgDepth = 2
	chain := NewChain(genesis, 0, &chaincfg.RegressionNetParams, cfg)

	// A three-header chain from genesis, each nonce precomputed to satisfy
	// the regtest proof-of-work floor when linked to its predecessor.
	nonces := []uint32{1, 0, 3}
	prev := genesis.BlockHash()
	var headers []wire.BlockHeader
	for _, n := range nonces {
		h := regtestHeader(prev, n)
		headers = append(headers, h)
		prev = h.BlockHash()
	}
	require.NoError(t, chain.ExtendHeaders(headers, 0))
	require.Equal(t, uint32(3), chain.Tip())

	// A one-header extension from genesis (height 0) would reorg 3 blocks
	// deep, exceeding MaxReorgDepth of 2.
	reorg := regtestHeader(genesis.BlockHash(), 2)
	err := chain.ExtendHeaders([]wire.BlockHeader{reorg}, 0)
	require.Error(t, err)
}

// TestExtendHeadersRejectsBitsNotMatchingRetarget exercises a network with a
// real retarget schedule (mainnet params, unlike regtest's
// PoWNoRetargeting): a header claiming a different (here, harder)
// difficulty than the schedule requires at a non-retarget height must be
// rejected before its proof of work is ever checked.
func TestExtendHeadersRejectsBitsNotMatchingRetarget(t *testing.T) {
	params := &chaincfg.MainNetParams
	genesis := wire.BlockHeader{Bits: params.PowLimitBits, Timestamp: time.Unix(0, 0)}
	chain := NewChain(genesis, 0, params, pegcfg.Default())

	bad := wire.BlockHeader{
		PrevBlock: genesis.BlockHash(),
		Bits:      params.PowLimitBits - 1,
		Timestamp: time.Unix(600, 0),
	}
	err := chain.ExtendHeaders([]wire.BlockHeader{bad}, 0)
	require.Error(t, err)
	require.Equal(t, pegerrors.ErrBadFormat, err.(pegerrors.PegError).Code)
}

// TestRequiredBitsRetargetsAtBoundary checks the difficulty-retarget
// arithmetic itself at a real retarget interval: blocks mined in half the
// intended timespan must tighten (halve) the target, mirroring the
// teacher's spvchain calcNextRequiredDifficulty.
func TestRequiredBitsRetargetsAtBoundary(t *testing.T) {
	params := &chaincfg.MainNetParams
	genesis := wire.BlockHeader{Bits: params.PowLimitBits, Timestamp: time.Unix(0, 0)}
	chain := NewChain(genesis, 0, params, pegcfg.Default())

	blocksPerRetarget := uint32(chain.blocksPerRetarget)
	targetTimespanSecs := int64(params.TargetTimespan / time.Second)

	// The retarget at height blocksPerRetarget spans headers 0 through
	// blocksPerRetarget-1.
	firstHeight := uint32(0)
	parentHeight := blocksPerRetarget - 1

	firstTime := time.Unix(0, 0)
	parentTime := firstTime.Add(time.Duration(targetTimespanSecs/2) * time.Second)

	chain.headers[firstHeight] = Header{
		Header: wire.BlockHeader{Bits: params.PowLimitBits, Timestamp: firstTime},
		Height: firstHeight,
	}
	chain.headers[parentHeight] = Header{
		Header: wire.BlockHeader{Bits: params.PowLimitBits, Timestamp: parentTime},
		Height: parentHeight,
	}

	got := chain.requiredBits(chain.At, parentHeight+1, parentTime)

	oldTarget := blockchain.CompactToBig(params.PowLimitBits)
	wantTarget := new(big.Int).Div(
		new(big.Int).Mul(oldTarget, big.NewInt(targetTimespanSecs/2)),
		big.NewInt(targetTimespanSecs),
	)
	gotTarget := blockchain.CompactToBig(got)
	require.Equal(t, 0, wantTarget.Cmp(gotTarget))
}
