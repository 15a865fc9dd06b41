// Package pegcfg defines the single named configuration struct the peg
// module is parameterized by. The core state machine never reads flags or
// environment variables itself; the embedding host parses a Config (for
// example with github.com/jessevdk/go-flags, as below) and passes it in.
package pegcfg

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
)

// Network identifies which Bitcoin network a P2SS address and witness
// script are derived for.
type Network string

// Supported networks, matching the bech32 HRPs named in spec.md §6.
const (
	NetworkMainnet  Network = "bitcoin"
	NetworkTestnet3 Network = "testnet"
	NetworkRegtest  Network = "regtest"
)

// Config is the peg module's ambient configuration surface. Struct tags
// follow the teacher's go-flags convention so a host CLI can embed this
// struct directly in its own flags.Config.
type Config struct {
	Network Network `long:"network" description:"Bitcoin network: bitcoin, testnet, or regtest" default:"bitcoin"`

	// MaxSignatories is the hard cap on signatory-set length (spec.md §3).
	MaxSignatories uint32 `long:"maxsignatories" description:"Maximum number of signatories in a set" default:"76"`

	// MinRelayFee is the 1-sat/byte floor's minimum, in satoshis (spec.md §4.E).
	MinRelayFee int64 `long:"minrelayfee" description:"Minimum relay fee in satoshis" default:"1000"`

	// DepositFee is subtracted from a verified deposit's amount before minting
	// (spec.md §4.D, referenced by E1/E2).
	DepositFee int64 `long:"depositfee" description:"Fee in satoshis deducted from deposits before minting" default:"0"`

	// MaxReorgDepth bounds how many blocks of header-chain reorg are accepted.
	// Zero means unlimited, appropriate for regtest.
	MaxReorgDepth uint32 `long:"maxreorgdepth" description:"Maximum accepted reorg depth in blocks (0 = unlimited)" default:"100"`

	// MinConfirmations is the minimum number of confirming blocks a deposit's
	// header must have accumulated before it may be admitted.
	MinConfirmations uint32 `long:"minconfirmations" description:"Minimum confirmations required for a deposit" default:"1"`
}

// Default returns the module's default configuration for mainnet.
func Default() Config {
	return Config{
		Network:          NetworkMainnet,
		MaxSignatories:   76,
		MinRelayFee:      1000,
		DepositFee:       0,
		MaxReorgDepth:    100,
		MinConfirmations: 1,
	}
}

// DefaultRegtest returns the module's default configuration for regtest,
// where reorg depth is unbounded and a single confirmation suffices.
func DefaultRegtest() Config {
	cfg := Default()
	cfg.Network = NetworkRegtest
	cfg.MaxReorgDepth = 0
	cfg.MinConfirmations = 1
	return cfg
}

// Parse populates a Config from command-line style arguments, starting from
// Default() so unset flags keep their defaults. This mirrors the teacher's
// top-level config.go, which embeds per-subsystem structs into a single
// flags.Parser.
func Parse(args []string) (Config, error) {
	cfg := Default()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internally-inconsistent values.
func (c Config) Validate() error {
	switch c.Network {
	case NetworkMainnet, NetworkTestnet3, NetworkRegtest:
	default:
		return fmt.Errorf("pegcfg: unknown network %q", c.Network)
	}
	if c.MaxSignatories == 0 {
		return fmt.Errorf("pegcfg: maxsignatories must be positive")
	}
	if c.MinRelayFee <= 0 {
		return fmt.Errorf("pegcfg: minrelayfee must be positive")
	}
	if c.DepositFee < 0 {
		return fmt.Errorf("pegcfg: depositfee must not be negative")
	}
	return nil
}
