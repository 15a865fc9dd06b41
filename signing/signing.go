// Package signing implements the signature-collection state machine for a
// single in-flight disbursal (spec.md §4.F): BIP-143 sighash computation
// against the witness script, per-input per-signatory DER signature
// admission, and threshold-based finalization into a fully witnessed
// transaction.
//
// Grounded on votingpool/withdrawal.go's TxSigs/TxInSigs/mergeSigs slot-
// filling pattern, adapted from m-of-n CHECKMULTISIG slot filling to the
// single-branch-per-signatory weighted witness stack of the script package.
package signing

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/palomachain/peg/pegerrors"
	"github.com/palomachain/peg/signatory"
)

// Input describes one transaction input being spent: the amount (needed by
// the BIP-143 sighash) and the witness script guarding it. Every input of a
// SigningTx shares the same witness script (spec.md §3 owning_p2ss_address).
type Input struct {
	Amount        int64
	WitnessScript []byte
}

// Coordinator collects DER signatures for every input of a single SigningTx
// and finalizes it once the submitting signatories' cumulative voting power
// reaches the signatory set's threshold (spec.md §4.F).
type Coordinator struct {
	tx          *wire.MsgTx
	inputs      []Input
	signatories []signatory.Signatory // the set, with committed keys resolved
	threshold   uint64
	sigHashes   *txscript.TxSigHashes
	submitted   map[int][][]byte // signatoryIndex -> per-input DER signature
	finalized   bool
	finalTx     *wire.MsgTx
}

// NewCoordinator starts a signature round over tx, whose inputs correspond
// 1:1 (by index) with inputs, against signatories (the signatory set with
// committed secp256k1 keys already resolved, e.g. via
// signatory.Set.WithSignatories) and its threshold.
func NewCoordinator(tx *wire.MsgTx, inputs []Input, signatories []signatory.Signatory, threshold uint64) *Coordinator {
	prevOuts := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range inputs {
		if i >= len(tx.TxIn) {
			break
		}
		prevOuts.AddPrevOut(tx.TxIn[i].PreviousOutPoint, &wire.TxOut{
			Value:    in.Amount,
			PkScript: nil,
		})
	}

	return &Coordinator{
		tx:          tx,
		inputs:      inputs,
		signatories: signatories,
		threshold:   threshold,
		sigHashes:   txscript.NewTxSigHashes(tx, prevOuts),
		submitted:   make(map[int][][]byte),
	}
}

// Sighash returns the BIP-143 SIGHASH_ALL sighash for input i.
func (c *Coordinator) Sighash(i int) ([]byte, error) {
	if i < 0 || i >= len(c.inputs) {
		return nil, pegerrors.New(pegerrors.ErrBadIndex, "input index out of range", nil)
	}
	return txscript.CalcWitnessSigHash(
		c.inputs[i].WitnessScript, c.sigHashes, txscript.SigHashAll,
		c.tx, i, c.inputs[i].Amount)
}

// Finalized reports whether this round has produced a fully witnessed
// transaction.
func (c *Coordinator) Finalized() bool {
	return c.finalized
}

// FinalTx returns the finalized transaction, if Finalized reports true.
func (c *Coordinator) FinalTx() *wire.MsgTx {
	return c.finalTx
}

// Submit admits a signatory's DER signatures, one per input, against the
// current signatory set's committed key at signatoryIndex. Validation
// (spec.md §4.F):
//
//  1. signatoryIndex must be valid for the bound signatory set.
//  2. the signatory must have a committed secp256k1 key (ErrBadKeyFormat).
//  3. the signatory must not have already submitted for this round
//     (ErrAlreadySigned).
//  4. every signature must verify against its input's sighash under the
//     committed key (ErrBadSignature).
//
// If, after admission, the cumulative voting power of all signatories that
// have submitted reaches the set's threshold, the round finalizes: every
// input's witness is assembled and Finalized begins reporting true.
func (c *Coordinator) Submit(signatoryIndex int, signatures [][]byte) error {
	if c.finalized {
		return pegerrors.New(pegerrors.ErrAlreadyProcessed, "signing round is already finalized", nil)
	}

	if signatoryIndex < 0 || signatoryIndex >= len(c.signatories) {
		return pegerrors.New(pegerrors.ErrBadIndex, "signatory_index is not valid for the current signatory set", nil)
	}
	if _, done := c.submitted[signatoryIndex]; done {
		return pegerrors.New(pegerrors.ErrAlreadySigned, "signatory has already submitted for this SigningTx", nil)
	}
	if len(signatures) != len(c.inputs) {
		return pegerrors.New(pegerrors.ErrBadFormat, "signature count does not match input count", nil)
	}

	pubKeyBytes := c.signatories[signatoryIndex].SecpPubKey
	if len(pubKeyBytes) != signatory.PubKeySize {
		return pegerrors.New(pegerrors.ErrBadKeyFormat, "signatory has not committed a secp256k1 key", nil)
	}
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return pegerrors.New(pegerrors.ErrBadKeyFormat, "committed key does not decode to a valid point", err)
	}

	for i, rawSig := range signatures {
		sig, err := ecdsa.ParseDERSignature(rawSig)
		if err != nil {
			return pegerrors.New(pegerrors.ErrBadSignature, "signature is not valid DER", err)
		}
		hash, err := c.Sighash(i)
		if err != nil {
			return err
		}
		if !sig.Verify(hash, pubKey) {
			return pegerrors.New(pegerrors.ErrBadSignature, "signature does not verify against the input sighash", nil)
		}
	}

	c.submitted[signatoryIndex] = signatures
	log.Debugf("accepted signature from signatory %d (cumulative power %d/%d)",
		signatoryIndex, c.cumulativeVotingPower(), c.threshold)

	if c.cumulativeVotingPower() >= c.threshold {
		c.finalize()
	}
	return nil
}

// HasSubmitted reports whether signatoryIndex has already submitted
// signatures for this round.
func (c *Coordinator) HasSubmitted(signatoryIndex int) bool {
	_, ok := c.submitted[signatoryIndex]
	return ok
}

func (c *Coordinator) cumulativeVotingPower() uint64 {
	var total uint64
	for idx := range c.submitted {
		total += uint64(c.signatories[idx].VotingPower)
	}
	return total
}

// finalize assembles the witness stack for every input: the ordered list
// [sig_n, sig_{n-1}, ..., sig_0, witnessScript], where slot k is signatory
// k's DER signature if present, else OP_0. This order is the reverse of
// script position, matching the stack-consumption order of the script
// package's OR-of-CHECKSIG chain (spec.md §4.B/§4.F). Each DER signature
// gets the SIGHASH_ALL type byte appended before it goes on the stack,
// since OP_CHECKSIG expects <DER sig><sighash type>, not a bare DER
// signature.
func (c *Coordinator) finalize() {
	n := len(c.signatories)
	for i, in := range c.inputs {
		witness := make(wire.TxWitness, 0, n+1)
		for k := n - 1; k >= 0; k-- {
			sigs, ok := c.submitted[k]
			if !ok {
				witness = append(witness, nil)
				continue
			}
			witness = append(witness, append(append([]byte(nil), sigs[i]...), byte(txscript.SigHashAll)))
		}
		witness = append(witness, in.WitnessScript)
		c.tx.TxIn[i].Witness = witness
	}
	c.finalized = true
	c.finalTx = c.tx
	log.Infof("signing round finalized: %d inputs witnessed", len(c.inputs))
}
