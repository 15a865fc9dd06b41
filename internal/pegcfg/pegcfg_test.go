package pegcfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.NoError(t, DefaultRegtest().Validate())
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	cfg := Default()
	cfg.Network = "litecoin"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroMaxSignatories(t *testing.T) {
	cfg := Default()
	cfg.MaxSignatories = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveRelayFee(t *testing.T) {
	cfg := Default()
	cfg.MinRelayFee = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeDepositFee(t *testing.T) {
	cfg := Default()
	cfg.DepositFee = -1
	require.Error(t, cfg.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--network", "testnet", "--minrelayfee", "2000"})
	require.NoError(t, err)
	require.Equal(t, NetworkTestnet3, cfg.Network)
	require.Equal(t, int64(2000), cfg.MinRelayFee)
	require.Equal(t, uint32(76), cfg.MaxSignatories)
}

func TestParseRejectsInvalidValue(t *testing.T) {
	_, err := Parse([]string{"--network", "litecoin"})
	require.Error(t, err)
}
