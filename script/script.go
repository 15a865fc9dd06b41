// Package script builds the pay-to-signatory-set (P2SS) witness script
// (spec.md §4.B): a weighted two-thirds-of-voting-power threshold over the
// current signatory set, expressed without OP_CHECKMULTISIG so it isn't
// bound to the 20-key limit and so each signature is weighted by voting
// power rather than counted equally.
//
// The script is built with txscript.ScriptBuilder, a typed, ordered
// sequence of opcode/push items, rather than by string concatenation and
// reparsing - see the "string-based script assembly" re-architecture note.
package script

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/palomachain/peg/signatory"
)

// Build emits the witness script for the given ordered signatories. Every
// signatory must carry a 33-byte compressed secp256k1 public key (spec.md
// §4.B); signatories that have not yet committed a key (nil SecpPubKey)
// are rejected, since the script as constructed must be able to accept a
// signature from every slot it reserves.
//
// For signatories s0..sn the emitted script is:
//
//	<pk0> CHECKSIG IF <vp0>         ELSE 0 ENDIF
//	SWAP <pk1> CHECKSIG IF <vp1> ADD ENDIF
//	...
//	SWAP <pkn> CHECKSIG IF <vpn> ADD ENDIF
//	<threshold> GREATERTHAN
func Build(signatories []signatory.Signatory, threshold uint64) ([]byte, error) {
	if len(signatories) == 0 {
		return nil, fmt.Errorf("script: cannot build a script for an empty signatory set")
	}

	builder := txscript.NewScriptBuilder()
	for i, s := range signatories {
		if len(s.SecpPubKey) != signatory.PubKeySize {
			return nil, fmt.Errorf("script: signatory %d has no committed 33-byte secp256k1 key", i)
		}

		if i > 0 {
			builder.AddOp(txscript.OP_SWAP)
		}
		builder.AddData(s.SecpPubKey)
		builder.AddOp(txscript.OP_CHECKSIG)
		builder.AddOp(txscript.OP_IF)
		builder.AddInt64(int64(s.VotingPower))
		if i > 0 {
			builder.AddOp(txscript.OP_ADD)
		} else {
			builder.AddOp(txscript.OP_ELSE)
			builder.AddOp(txscript.OP_0)
		}
		builder.AddOp(txscript.OP_ENDIF)
	}
	builder.AddInt64(int64(threshold))
	builder.AddOp(txscript.OP_GREATERTHAN)

	return builder.Script()
}

// WitnessScriptHash returns the SHA-256 hash of the witness script, the
// value committed to by a P2WSH address (spec.md §4.B).
func WitnessScriptHash(witnessScript []byte) [32]byte {
	return sha256.Sum256(witnessScript)
}
