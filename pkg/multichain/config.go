package multichain

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/creation-indexer/internal/constants"
)

// ChainConfig defines the configuration for a single chain.
type ChainConfig struct {
	// ID is a unique identifier for this chain instance (e.g., "ethereum").
	ID string `yaml:"id" json:"id"`
	// Name is a human-readable name for the chain.
	Name string `yaml:"name" json:"name"`
	// ChainID is the numeric chain ID (e.g., 1 for Ethereum mainnet).
	ChainID uint64 `yaml:"chain_id" json:"chainId"`
	// SourceURL overrides the per-chain data source endpoint.
	SourceURL string `yaml:"source_url,omitempty" json:"sourceUrl,omitempty"`
	// StartBlock is the first block the historical handler scans.
	StartBlock uint64 `yaml:"start_block" json:"startBlock"`
	// Interval is the historical window size in blocks.
	Interval uint64 `yaml:"interval" json:"interval"`
	// ReorgThreshold is how far behind the head the safe block trails.
	ReorgThreshold uint64 `yaml:"reorg_threshold" json:"reorgThreshold"`
	// Enabled indicates whether this chain should be active.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Workers bounds concurrent historical windows (default: from global config).
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`
	// PollInterval is how often the live handler checks the head.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"pollInterval,omitempty"`
}

// DefaultChainConfig returns a chain config with sensible defaults.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		StartBlock:     constants.DefaultStartBlock,
		Interval:       constants.DefaultInterval,
		ReorgThreshold: constants.DefaultReorgThreshold,
		Enabled:        true,
		Workers:        constants.DefaultWorkers,
		PollInterval:   constants.DefaultPollInterval,
	}
}

// Validate validates a single chain configuration and fills defaults.
func (c *ChainConfig) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.Interval == 0 {
		c.Interval = constants.DefaultInterval
	}
	if c.Workers <= 0 {
		c.Workers = constants.DefaultWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = constants.DefaultPollInterval
	}
	return nil
}

// ValidateChains validates every chain and rejects duplicate IDs.
func ValidateChains(chains []ChainConfig) error {
	seen := make(map[string]bool)
	for i := range chains {
		if err := chains[i].Validate(); err != nil {
			return fmt.Errorf("chain[%d] (%s): %w", i, chains[i].ID, err)
		}
		if seen[chains[i].ID] {
			return fmt.Errorf("duplicate chain ID: %s", chains[i].ID)
		}
		seen[chains[i].ID] = true
	}
	return nil
}

// EnabledChains returns only the enabled chain configurations.
func EnabledChains(chains []ChainConfig) []ChainConfig {
	var enabled []ChainConfig
	for _, chain := range chains {
		if chain.Enabled {
			enabled = append(enabled, chain)
		}
	}
	return enabled
}
