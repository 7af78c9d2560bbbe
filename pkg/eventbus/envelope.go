// Package eventbus streams enriched discoveries to external brokers.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/0xmhha/creation-indexer/pkg/types"
)

// EventTypeContractCreated tags every envelope written by the sinks.
const EventTypeContractCreated = "contract.created"

// Envelope wraps a discovery with delivery metadata.
type Envelope struct {
	ID        string                   `json:"id"`
	Type      string                   `json:"type"`
	Timestamp time.Time                `json:"timestamp"`
	NodeID    string                   `json:"node_id,omitempty"`
	ChainID   string                   `json:"chain_id"`
	Data      *types.EnrichedDiscovery `json:"data"`
}

// NewEnvelope wraps d with a fresh message ID.
func NewEnvelope(nodeID string, d *types.EnrichedDiscovery) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      EventTypeContractCreated,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		ChainID:   d.ChainID,
		Data:      d,
	}
}

// Encode returns the JSON form of the envelope.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope written by a sink.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	if e.Data == nil {
		return nil, fmt.Errorf("%w: envelope has no data", ErrSerializationFailed)
	}
	return &e, nil
}

// PartitionKey is the key a discovery is written under. Brokers that
// compact by key keep only the latest record per contract.
func PartitionKey(d *types.EnrichedDiscovery) string {
	return d.ChainID + ":" + d.ID
}
