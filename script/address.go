package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/palomachain/peg/internal/pegcfg"
)

// ChainParams returns the btcd chain parameters for the given configured
// network (spec.md §6: bitcoin | testnet | regtest, bech32 HRPs bc | tb |
// bcrt).
func ChainParams(network pegcfg.Network) (*chaincfg.Params, error) {
	switch network {
	case pegcfg.NetworkMainnet:
		return &chaincfg.MainNetParams, nil
	case pegcfg.NetworkTestnet3:
		return &chaincfg.TestNet3Params, nil
	case pegcfg.NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("script: unknown network %q", network)
	}
}

// P2WSHAddress derives the pay-to-witness-script-hash (P2WSH) address for a
// witness script, on the given network. This is the P2SS address: it is
// unique to the exact ordered content of the signatory set the script was
// built from (Testable Property 3).
func P2WSHAddress(witnessScript []byte, network pegcfg.Network) (btcutil.Address, error) {
	params, err := ChainParams(network)
	if err != nil {
		return nil, err
	}
	hash := WitnessScriptHash(witnessScript)
	return btcutil.NewAddressWitnessScriptHash(hash[:], params)
}

// PkScript returns the scriptPubKey (OP_0 <32-byte-hash>) for the P2WSH
// address derived from witnessScript. This is what a deposit must pay to,
// and what a disbursal's change output pays.
func PkScript(witnessScript []byte, network pegcfg.Network) ([]byte, error) {
	addr, err := P2WSHAddress(witnessScript, network)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
