// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsizes estimates the serialize size of a disbursal transaction
// before it is signed, so the disbursal builder can compute a fee without
// first producing every signatory's signature.
package txsizes

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// P2WSHPkScriptSize is the size of a transaction output script paying to a
// witness script hash (the custody output type). It is calculated as:
//
//   - OP_0
//   - OP_DATA_32
//   - 32 bytes witness script hash
const P2WSHPkScriptSize = 1 + 1 + 32

// P2WSHOutputSize is the serialize size of a change output paying back to
// the current P2SS address. It is calculated as:
//
//   - 8 bytes output value
//   - 1 byte compact int encoding value 34
//   - 34 bytes P2WSH output script
const P2WSHOutputSize = 8 + 1 + P2WSHPkScriptSize

// p2wshBaseInputSize is the non-witness portion of a transaction input
// spending a P2WSH output. It is calculated as:
//
//   - 32 bytes previous tx
//   - 4 bytes output index
//   - 1 byte compact int encoding an empty signature script
//   - 0 bytes signature script (witness programs carry no sigScript)
//   - 4 bytes sequence
const p2wshBaseInputSize = 32 + 4 + 1 + 4

// SumOutputSerializeSizes sums up the serialized size of the supplied outputs.
func SumOutputSerializeSizes(outputs []*wire.TxOut) (serializeSize int) {
	for _, txOut := range outputs {
		serializeSize += txOut.SerializeSize()
	}
	return serializeSize
}

// EstimateP2WSHWitnessWeight returns the worst case witness weight for a
// single custody input: one witness stack item per signatory (either a DER
// ECDSA signature with a trailing sighash byte, or an empty OP_0 placeholder
// for a signatory that did not sign) plus the witness script itself.
//
// The worst case assumes every signatory contributes a maximal 72-byte DER
// signature, since the disbursal builder sizes the transaction before any
// signatures are collected.
func EstimateP2WSHWitnessWeight(numSignatories, witnessScriptSize int) int {
	const maxDERSigPlusSighash = 73

	itemCount := numSignatories + 1 // one slot per signatory, plus the script
	weight := wire.VarIntSerializeSize(uint64(itemCount))
	weight += numSignatories * (wire.VarIntSerializeSize(maxDERSigPlusSighash) + maxDERSigPlusSighash)
	weight += wire.VarIntSerializeSize(uint64(witnessScriptSize)) + witnessScriptSize
	return weight
}

// EstimateP2WSHInputVirtualSize returns the worst case virtual size of a
// single transaction input redeeming a custody P2WSH output guarded by a
// witness script of witnessScriptSize bytes and numSignatories signatory
// branches.
func EstimateP2WSHInputVirtualSize(numSignatories, witnessScriptSize int) int {
	witnessWeight := EstimateP2WSHWitnessWeight(numSignatories, witnessScriptSize)
	return p2wshBaseInputSize +
		(witnessWeight+blockchain.WitnessScaleFactor-1)/blockchain.WitnessScaleFactor
}

// EstimateDisbursalVirtualSize returns a worst case virtual size estimate
// for an unsigned disbursal transaction spending numInputs custody P2WSH
// outputs (each guarded by the same witness script, with numSignatories
// branches) and producing txOuts (the withdrawal outputs plus the trailing
// change output, already built).
func EstimateDisbursalVirtualSize(numInputs, numSignatories, witnessScriptSize int, txOuts []*wire.TxOut) int {
	// 8 bytes for version and locktime, plus input/output count compact ints.
	baseSize := 8 +
		wire.VarIntSerializeSize(uint64(numInputs)) +
		wire.VarIntSerializeSize(uint64(len(txOuts))) +
		numInputs*p2wshBaseInputSize +
		SumOutputSerializeSizes(txOuts)

	// Segwit marker + flag, once per transaction, plus each input's witness.
	witnessWeight := 2 + numInputs*EstimateP2WSHWitnessWeight(numSignatories, witnessScriptSize)

	return baseSize + (witnessWeight+blockchain.WitnessScaleFactor-1)/blockchain.WitnessScaleFactor
}
