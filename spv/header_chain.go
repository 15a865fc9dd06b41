// Package spv implements the deposit verifier (spec.md §4.D): a replicated
// header chain the relayer extends with raw Bitcoin headers, Merkle-proof
// verification of a deposit transaction's inclusion, P2SS-payment and
// sidechain-recipient-commitment recognition, and the processed-tx set that
// guarantees at-most-once minting.
//
// Grounded on the teacher's chain package's role as the SPV/backend
// boundary and netparams' Params-driven difficulty fields; header
// acceptance rules are expressed directly over chaincfg.Params rather than
// a full node's block index, since the core only ever sees a linear
// header chain handed to it by an external relayer.
package spv

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/palomachain/peg/internal/pegcfg"
	"github.com/palomachain/peg/pegerrors"
)

// Header is one accepted header together with its chain height.
type Header struct {
	Header wire.BlockHeader
	Height uint32
}

// Chain is the replicated SPV header chain (spec.md §3, chain field).
// It holds headers by height and validates proof-of-work and linkage for
// every newly admitted header. Depth-limited reorgs are accepted up to
// MaxReorgDepth; regtest honors PoWNoRetargeting instead of a real
// retarget window.
type Chain struct {
	params        *chaincfg.Params
	maxReorgDepth uint32

	blocksPerRetarget   int32
	minRetargetTimespan int64
	maxRetargetTimespan int64

	headers map[uint32]Header
	byHash  map[chainhash.Hash]uint32
	tip     uint32
}

// NewChain seeds a header chain at genesisHeight with genesis.
func NewChain(genesis wire.BlockHeader, genesisHeight uint32, params *chaincfg.Params, cfg pegcfg.Config) *Chain {
	targetTimespan := int64(params.TargetTimespan / time.Second)
	targetTimePerBlock := int64(params.TargetTimePerBlock / time.Second)
	adjustmentFactor := params.RetargetAdjustmentFactor

	c := &Chain{
		params:              params,
		maxReorgDepth:       cfg.MaxReorgDepth,
		blocksPerRetarget:   int32(targetTimespan / targetTimePerBlock),
		minRetargetTimespan: targetTimespan / adjustmentFactor,
		maxRetargetTimespan: targetTimespan * adjustmentFactor,
		headers:             make(map[uint32]Header),
		byHash:              make(map[chainhash.Hash]uint32),
		tip:                 genesisHeight,
	}
	c.insert(genesis, genesisHeight)
	return c
}

func (c *Chain) insert(h wire.BlockHeader, height uint32) {
	rec := Header{Header: h, Height: height}
	c.headers[height] = rec
	c.byHash[h.BlockHash()] = height
	if height > c.tip {
		c.tip = height
	}
}

// Tip returns the current highest accepted height.
func (c *Chain) Tip() uint32 {
	return c.tip
}

// At returns the header accepted at height, if any.
func (c *Chain) At(height uint32) (Header, bool) {
	h, ok := c.headers[height]
	return h, ok
}

// ExtendHeaders admits a contiguous run of headers extending the chain at
// height+1, height+2, .... Each header must link to its predecessor by
// hash, carry the Bits value the retarget schedule actually requires at
// its height, satisfy the proof-of-work implied by that target, and not
// reorg beyond MaxReorgDepth blocks behind the current tip.
//
// All headers are validated before any are admitted: acceptance is
// all-or-nothing for the batch. Validation runs against an overlay of the
// batch's own not-yet-committed headers layered over the chain's existing
// headers, so a retarget lookback that falls inside the batch itself
// (e.g. validating header 2 of 3 against header 1 of the same batch)
// still resolves correctly.
func (c *Chain) ExtendHeaders(headers []wire.BlockHeader, fromHeight uint32) error {
	parent, ok := c.At(fromHeight)
	if !ok {
		return pegerrors.New(pegerrors.ErrUnknownHeight, "extension does not attach to a known header", nil)
	}
	if parent.Height < c.tip && c.maxReorgDepth != 0 && c.tip-parent.Height > c.maxReorgDepth {
		return pegerrors.New(pegerrors.ErrBadFormat, "reorg exceeds configured maximum depth", nil)
	}

	overlay := make(map[uint32]Header, len(headers))
	lookup := func(height uint32) (Header, bool) {
		if h, ok := overlay[height]; ok {
			return h, true
		}
		return c.At(height)
	}

	prevHash := parent.Header.BlockHash()
	for i, h := range headers {
		height := parent.Height + 1 + uint32(i)
		if h.PrevBlock != prevHash {
			return pegerrors.New(pegerrors.ErrBadFormat, "header does not link to its predecessor", nil)
		}
		if required := c.requiredBits(lookup, height, h.Timestamp); h.Bits != required {
			return pegerrors.New(pegerrors.ErrBadFormat, "header's difficulty bits do not match the retarget schedule", nil)
		}
		if err := checkProofOfWork(h, c.params); err != nil {
			return pegerrors.New(pegerrors.ErrBadFormat, "header fails proof-of-work check", err)
		}
		overlay[height] = Header{Header: h, Height: height}
		prevHash = h.BlockHash()
	}

	for i, h := range headers {
		c.insert(h, parent.Height+1+uint32(i))
	}
	log.Debugf("extended chain by %d headers to tip %d", len(headers), c.tip)
	return nil
}

// requiredBits calculates the Bits value a header at height must carry,
// following the teacher's spvchain blockmanager.calcNextRequiredDifficulty:
// unchanged from the previous header except at retarget intervals, where
// the target is rescaled by the ratio of actual to intended timespan over
// the preceding window and clamped to the network's adjustment factor and
// PowLimit. Networks with PoWNoRetargeting (regtest) always require
// PowLimitBits. lookup resolves ancestor headers, including ones earlier
// in the same not-yet-committed batch.
func (c *Chain) requiredBits(lookup func(uint32) (Header, bool), height uint32, newBlockTime time.Time) uint32 {
	if c.params.PoWNoRetargeting {
		return c.params.PowLimitBits
	}

	var parent Header
	var hasParent bool
	if height > 0 {
		parent, hasParent = lookup(height - 1)
	}

	if height%uint32(c.blocksPerRetarget) != 0 {
		if c.params.ReduceMinDifficulty && hasParent {
			reductionTime := int64(c.params.MinDiffReductionTime / time.Second)
			if newBlockTime.Unix() > parent.Header.Timestamp.Unix()+reductionTime {
				return c.params.PowLimitBits
			}
		}
		if hasParent {
			return parent.Header.Bits
		}
		return c.params.PowLimitBits
	}

	if !hasParent || height < uint32(c.blocksPerRetarget) {
		return c.params.PowLimitBits
	}
	firstNode, ok := lookup(height - uint32(c.blocksPerRetarget))
	if !ok {
		// Retarget window falls before the earliest header this chain
		// holds (e.g. a chain seeded mid-height by NewChain): fall back
		// to the immediately preceding difficulty rather than reject.
		return parent.Header.Bits
	}

	actualTimespan := parent.Header.Timestamp.Unix() - firstNode.Header.Timestamp.Unix()
	adjustedTimespan := actualTimespan
	if actualTimespan < c.minRetargetTimespan {
		adjustedTimespan = c.minRetargetTimespan
	} else if actualTimespan > c.maxRetargetTimespan {
		adjustedTimespan = c.maxRetargetTimespan
	}

	oldTarget := blockchain.CompactToBig(parent.Header.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(adjustedTimespan))
	targetTimespan := int64(c.params.TargetTimespan / time.Second)
	newTarget.Div(newTarget, big.NewInt(targetTimespan))
	if newTarget.Cmp(c.params.PowLimit) > 0 {
		newTarget.Set(c.params.PowLimit)
	}
	return blockchain.BigToCompact(newTarget)
}

// checkProofOfWork verifies that a header's hash satisfies the target
// implied by its own Bits field, using the network's exported
// blockchain.CompactToBig/HashToBig difficulty helpers (the same ones the
// teacher's spvchain block manager calls).
func checkProofOfWork(h wire.BlockHeader, params *chaincfg.Params) error {
	target := blockchain.CompactToBig(h.Bits)
	if target.Sign() <= 0 {
		return pegerrors.New(pegerrors.ErrBadFormat, "header target is non-positive", nil)
	}
	if target.Cmp(params.PowLimit) > 0 {
		return pegerrors.New(pegerrors.ErrBadFormat, "header target exceeds network proof-of-work limit", nil)
	}

	hash := h.BlockHash()
	hashNum := blockchain.HashToBig(&hash)
	if hashNum.Cmp(target) > 0 {
		return pegerrors.New(pegerrors.ErrBadFormat, "header hash does not satisfy its target", nil)
	}
	return nil
}
