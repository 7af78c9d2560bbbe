package dispatch

import (
	"context"
	"errors"

	"github.com/0xmhha/creation-indexer/pkg/storage"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// Sink receives enriched discoveries. Implementations upsert by
// (ChainID, ID) with last-write-wins semantics.
type Sink interface {
	Upsert(ctx context.Context, d *types.EnrichedDiscovery) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d *types.EnrichedDiscovery) error

// Upsert implements Sink.
func (f SinkFunc) Upsert(ctx context.Context, d *types.EnrichedDiscovery) error {
	return f(ctx, d)
}

// StoreSink persists discoveries to a contract store.
func StoreSink(w storage.ContractWriter) Sink {
	return SinkFunc(w.SetContract)
}

// MultiSink fans every upsert out to all sinks in order. All sinks are
// attempted; their errors are joined.
type MultiSink []Sink

// Upsert implements Sink.
func (m MultiSink) Upsert(ctx context.Context, d *types.EnrichedDiscovery) error {
	var errs []error
	for _, s := range m {
		if err := s.Upsert(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
