package dispatch

import (
	"fmt"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// Handler is a block-handler registration. The callback is invoked at
// StartBlock + k*Interval for every k while the block is at or below
// EndBlock. A nil EndBlock means the handler follows the chain head.
type Handler struct {
	Name       string
	ChainID    string
	Interval   uint64
	StartBlock uint64
	EndBlock   *uint64
}

// Validate checks the registration.
func (h Handler) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if h.ChainID == "" {
		return fmt.Errorf("handler %s: chain id cannot be empty", h.Name)
	}
	if h.Interval == 0 {
		return fmt.Errorf("handler %s: interval must be positive", h.Name)
	}
	return nil
}

// Live reports whether the handler follows the chain head.
func (h Handler) Live() bool {
	return h.EndBlock == nil
}

// Window returns the block window scanned by the invocation at n.
func (h Handler) Window(n uint64) scan.BlockRange {
	return scan.BlockRange{From: n, To: n + h.Interval}
}

// Invocations returns the blocks a bounded handler is invoked at.
// It returns nil for live handlers.
func (h Handler) Invocations() []uint64 {
	if h.EndBlock == nil || h.StartBlock > *h.EndBlock {
		return nil
	}
	end := *h.EndBlock
	out := make([]uint64, 0, (end-h.StartBlock)/h.Interval+1)
	for n := h.StartBlock; n <= end; n += h.Interval {
		out = append(out, n)
		if n > end-h.Interval {
			break // next step would overflow or pass end
		}
	}
	return out
}

// Plan holds the two handlers registered per chain.
type Plan struct {
	SafeBlock  uint64
	Historical Handler
	Live       Handler
}

// SafeBlock returns height minus the reorg margin, floored at zero.
func SafeBlock(height, margin uint64) uint64 {
	if margin >= height {
		return 0
	}
	return height - margin
}

// NewPlan builds the historical and live handlers of a chain.
//
// The historical handler walks [startBlock, safeBlock] in interval-sized
// windows. The live handler starts at safeBlock+interval with single-block
// windows. Blocks between the end of the last historical window and the
// live start are not scanned by either handler; DetectGaps reports them.
func NewPlan(chainID string, startBlock, interval, safeBlock uint64) Plan {
	end := safeBlock
	return Plan{
		SafeBlock: safeBlock,
		Historical: Handler{
			Name:       "historical",
			ChainID:    chainID,
			Interval:   interval,
			StartBlock: startBlock,
			EndBlock:   &end,
		},
		Live: Handler{
			Name:       "live",
			ChainID:    chainID,
			Interval:   1,
			StartBlock: safeBlock + interval,
		},
	}
}

// LastHistoricalWindow returns the window of the final historical
// invocation. ok is false when the historical handler never runs.
func (p Plan) LastHistoricalWindow() (r scan.BlockRange, ok bool) {
	inv := p.Historical.Invocations()
	if len(inv) == 0 {
		return scan.BlockRange{}, false
	}
	return p.Historical.Window(inv[len(inv)-1]), true
}
