package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EnrichedDiscovery is a discovered contract creation annotated with the
// timestamp of its creation block. It is the record handed to sinks, which
// upsert it keyed by (ChainID, ID).
type EnrichedDiscovery struct {
	// ID is the contract address as returned by the source
	ID string `json:"id"`

	// ChainID identifies the chain the contract lives on
	ChainID string `json:"chainId"`

	// BlockNumber is the creation block
	BlockNumber uint64 `json:"blockNumber"`

	// BlockTime is the creation block's unix timestamp in seconds
	BlockTime uint64 `json:"blockTime"`
}

// Time returns BlockTime as a time.Time in UTC.
func (d *EnrichedDiscovery) Time() time.Time {
	return time.Unix(int64(d.BlockTime), 0).UTC()
}

// Address parses ID as an account address. ok is false when ID is not a
// 20-byte hex string.
func (d *EnrichedDiscovery) Address() (common.Address, bool) {
	if !common.IsHexAddress(d.ID) {
		return common.Address{}, false
	}
	return common.HexToAddress(d.ID), true
}
