// Package disbursal implements the deterministic Bitcoin transaction
// builder for outgoing withdrawals (spec.md §4.E): it spends the current
// P2SS UTXO set against queued user outputs, appends a change output back
// to the P2SS address, and apportions a flat per-byte fee across the user
// outputs only.
package disbursal

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/palomachain/peg/pegerrors"
	"github.com/palomachain/peg/wallet/txrules"
	"github.com/palomachain/peg/wallet/txsizes"
)

// UTXO is a spendable output of a previously verified deposit or prior
// disbursal's change output (spec.md §3).
type UTXO struct {
	Outpoint wire.OutPoint
	Amount   int64 // satoshis
	PkScript []byte
}

// Output is a queued user withdrawal (spec.md §6 Withdrawal).
type Output struct {
	PkScript []byte
	Amount   int64 // satoshis, before fee apportionment
}

// Request is the input to Build: the UTXOs to spend, the user outputs to
// pay, the witness script whose hash backs the change output and whose
// size (together with the signatory count) drives the fee estimate, and
// the network's minimum relay fee floor (pegcfg.Config.MinRelayFee,
// spec.md §4.E).
type Request struct {
	Inputs            []UTXO
	Outputs           []Output
	ChangePkScript    []byte
	WitnessScriptSize int
	NumSignatories    int
	MinRelayFee       int64
}

// Result is an unsigned disbursal transaction plus the per-output amounts
// actually paid out (after fee apportionment), in the same order as
// Request.Outputs.
type Result struct {
	Tx            *wire.MsgTx
	OutputAmounts []int64
	Fee           int64
	ChangeAmount  int64
}

// Build assembles an unsigned disbursal transaction following the
// deterministic procedure of spec.md §4.E:
//
//  1. add every input in order;
//  2. add every user output in order, failing InsufficientFunds if the
//     running remainder ever reaches zero or below;
//  3. append a change output for the remainder;
//  4. compute the fee as max(tx.byte_length, req.MinRelayFee);
//  5. apportion the fee across user outputs only, by ceiling division,
//     failing OutputBelowFee if any output would go non-positive.
func Build(req Request) (*Result, error) {
	if len(req.Outputs) == 0 {
		return nil, pegerrors.New(pegerrors.ErrInsufficientFunds,
			"disbursal requires at least one user output", nil)
	}

	tx := wire.NewMsgTx(2)

	var totalIn int64
	for _, in := range req.Inputs {
		tx.AddTxIn(wire.NewTxIn(&in.Outpoint, nil, nil))
		totalIn += in.Amount
	}

	remaining := totalIn
	for _, out := range req.Outputs {
		remaining -= out.Amount
		if remaining <= 0 {
			return nil, pegerrors.New(pegerrors.ErrInsufficientFunds,
				"inputs do not cover requested outputs and a change/fee margin", nil)
		}
		tx.AddTxOut(wire.NewTxOut(out.Amount, out.PkScript))
	}

	tx.AddTxOut(wire.NewTxOut(remaining, req.ChangePkScript))

	vsize := txsizes.EstimateDisbursalVirtualSize(len(req.Inputs), req.NumSignatories,
		req.WitnessScriptSize, tx.TxOut)
	fee := int64(txrules.FeeForSerializeSize(txrules.DefaultRelayFeePerKb, vsize))
	if fee < req.MinRelayFee {
		fee = req.MinRelayFee
	}

	n := int64(len(req.Outputs))
	feePer := ceilDiv(fee, n)

	outputAmounts := make([]int64, len(req.Outputs))
	for i, out := range req.Outputs {
		paid := out.Amount - feePer
		if paid <= 0 {
			return nil, pegerrors.New(pegerrors.ErrOutputBelowFee,
				"apportioned fee would drive a user output to a non-positive amount", nil)
		}
		outputAmounts[i] = paid
		tx.TxOut[i].Value = paid
	}

	return &Result{
		Tx:            tx,
		OutputAmounts: outputAmounts,
		Fee:           feePer * n,
		ChangeAmount:  remaining,
	}, nil
}

func ceilDiv(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}
