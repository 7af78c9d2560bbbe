package multichain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/creation-indexer/internal/constants"
)

func TestChainConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChainConfig
		wantErr bool
	}{
		{"missing id", ChainConfig{ChainID: 1}, true},
		{"missing chain id", ChainConfig{ID: "eth"}, true},
		{"minimal", ChainConfig{ID: "eth", ChainID: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "eth", tt.cfg.Name)
			assert.Equal(t, uint64(constants.DefaultInterval), tt.cfg.Interval)
			assert.Equal(t, constants.DefaultWorkers, tt.cfg.Workers)
			assert.Equal(t, constants.DefaultPollInterval, tt.cfg.PollInterval)
		})
	}
}

func TestValidateChains_Duplicate(t *testing.T) {
	err := ValidateChains([]ChainConfig{
		{ID: "eth", ChainID: 1},
		{ID: "eth", ChainID: 1},
	})
	assert.ErrorContains(t, err, "duplicate chain ID")
}

func TestEnabledChains(t *testing.T) {
	chains := []ChainConfig{
		{ID: "a", Enabled: true},
		{ID: "b"},
		{ID: "c", Enabled: true},
	}
	enabled := EnabledChains(chains)
	require.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].ID)
	assert.Equal(t, "c", enabled[1].ID)
}

func TestDefaultChainConfig(t *testing.T) {
	cfg := DefaultChainConfig()
	assert.Equal(t, uint64(1), cfg.StartBlock)
	assert.Equal(t, uint64(200), cfg.Interval)
	assert.Equal(t, uint64(200), cfg.ReorgThreshold)
	assert.True(t, cfg.Enabled)
}
