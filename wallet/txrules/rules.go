// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy for a mempool,
// expressed as a per-kilobyte rate: 1000 sat/kB, i.e. 1 sat/byte. The peg
// module's disbursal builder passes it to FeeForSerializeSize to get a
// 1-sat/byte fee, which it then raises to its configured minimum relay fee.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// Transaction rule violations.
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
)

// CheckOutput performs simple consensus tests on a transaction output: its
// amount must be non-negative and must not exceed the maximum possible
// Bitcoin amount. The peg module does not perform general dust-avoidance
// (spec.md §1 Non-goals) beyond the non-positive check the disbursal
// builder itself enforces (ErrOutputBelowFee), so no IsDustOutput check is
// applied here.
func CheckOutput(output *wire.TxOut) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > int64(btcutil.MaxSatoshi) {
		return ErrAmountExceedsMax
	}
	return nil
}

// FeeForSerializeSize calculates the required fee for a transaction of some
// arbitrary size given a relay fee policy expressed as a per-kilobyte rate.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount, txSerializeSize int) btcutil.Amount {
	fee := relayFeePerKb * btcutil.Amount(txSerializeSize) / 1000

	if fee == 0 && relayFeePerKb > 0 {
		fee = relayFeePerKb
	}

	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}

	return fee
}
