package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/creation-indexer/internal/logger"
	"github.com/0xmhha/creation-indexer/pkg/coalesce"
	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// EffectGetCreatedContracts names the memoized window scan.
const EffectGetCreatedContracts = "getCreatedContracts"

// Discoverer finds contract creations in a block range.
type Discoverer interface {
	CreatedContracts(ctx context.Context, r scan.BlockRange) ([]scan.Discovery, error)
}

// Pipeline turns a block window into enriched discoveries: scan, extract,
// request a timestamp per discovery, flush the tick, wait for all of them
// and upsert the results.
//
// Every invocation gets its own tick queue and coalescer, so a batch only
// ever holds blocks of one window and concurrent invocations never share a
// lookup.
type Pipeline struct {
	chainID    string
	discoverer Discoverer
	lookup     coalesce.TimestampLookup
	logger     *zap.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(chainID string, discoverer Discoverer, lookup coalesce.TimestampLookup, logger *zap.Logger) (*Pipeline, error) {
	if discoverer == nil {
		return nil, fmt.Errorf("discoverer cannot be nil")
	}
	if lookup == nil {
		return nil, fmt.Errorf("timestamp lookup cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chainID:    chainID,
		discoverer: discoverer,
		lookup:     lookup,
		logger:     logger.Named("pipeline"),
	}, nil
}

// windowInput is the memo key of a window scan.
type windowInput struct {
	ChainID string `json:"chainId"`
	From    uint64 `json:"fromBlock"`
	To      uint64 `json:"toBlock"`
}

// HandlerFunc returns a callback scanning windows of interval blocks.
func (p *Pipeline) HandlerFunc(interval uint64) HandlerFunc {
	return func(ctx context.Context, b Block, hc Context) error {
		r := scan.BlockRange{From: b.Number, To: b.Number + interval}
		_, err := p.Process(ctx, r, hc)
		return err
	}
}

// Process runs the pipeline over r and returns what it emitted in
// discovery order.
func (p *Pipeline) Process(ctx context.Context, r scan.BlockRange, hc Context) ([]*types.EnrichedDiscovery, error) {
	res, err := hc.Effect(ctx, EffectGetCreatedContracts, windowInput{ChainID: p.chainID, From: r.From, To: r.To},
		func(ctx context.Context) (any, error) {
			return p.discoverer.CreatedContracts(ctx, r)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r, err)
	}
	discoveries, ok := res.([]scan.Discovery)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", EffectGetCreatedContracts, res)
	}
	if len(discoveries) == 0 {
		return nil, nil
	}

	tick := coalesce.NewTickQueue()
	timestamps, err := coalesce.New(p.lookup, tick,
		coalesce.WithChain(p.chainID),
		coalesce.WithLogger(p.logger),
		coalesce.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}

	pending := make([]*coalesce.Pending, len(discoveries))
	for i, d := range discoveries {
		pending[i] = timestamps.Request(d.BlockNumber)
	}
	tick.Drain()

	out := make([]*types.EnrichedDiscovery, len(discoveries))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range discoveries {
		g.Go(func() error {
			ts, err := pending[i].Wait(gctx)
			if err != nil {
				return fmt.Errorf("contract %s: %w", d.ID, err)
			}
			out[i] = &types.EnrichedDiscovery{
				ID:          d.ID,
				ChainID:     p.chainID,
				BlockNumber: d.BlockNumber,
				BlockTime:   ts,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, e := range out {
		if err := hc.Set(ctx, e); err != nil {
			return nil, err
		}
	}

	logger.FromContext(ctx, p.logger).Debug("window processed",
		zap.Stringer("range", r),
		zap.Int("contracts", len(out)),
	)
	return out, nil
}
