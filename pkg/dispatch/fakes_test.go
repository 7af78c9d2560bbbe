package dispatch

import (
	"context"
	"sync"

	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// fakeDiscoverer serves discoveries from a fixed list, filtered by range
type fakeDiscoverer struct {
	mu     sync.Mutex
	all    []scan.Discovery
	err    error
	ranges []scan.BlockRange
}

func (f *fakeDiscoverer) CreatedContracts(ctx context.Context, r scan.BlockRange) ([]scan.Discovery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, r)
	if f.err != nil {
		return nil, f.err
	}
	var out []scan.Discovery
	for _, d := range f.all {
		if d.BlockNumber >= r.From && d.BlockNumber < r.To {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDiscoverer) calls() []scan.BlockRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scan.BlockRange(nil), f.ranges...)
}

// fakeLookup answers timestamp lookups from a map
type fakeLookup struct {
	mu     sync.Mutex
	times  map[uint64]uint64
	err    error
	ranges []scan.BlockRange
}

func (f *fakeLookup) BlockTimestamps(ctx context.Context, r scan.BlockRange) (map[uint64]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, r)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[uint64]uint64)
	for b, ts := range f.times {
		if b >= r.From && b < r.To {
			out[b] = ts
		}
	}
	return out, nil
}

func (f *fakeLookup) calls() []scan.BlockRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scan.BlockRange(nil), f.ranges...)
}

// memorySink records upserts keyed by id
type memorySink struct {
	mu    sync.Mutex
	byID  map[string]*types.EnrichedDiscovery
	order []string
}

func newMemorySink() *memorySink {
	return &memorySink{byID: make(map[string]*types.EnrichedDiscovery)}
}

func (s *memorySink) Upsert(ctx context.Context, d *types.EnrichedDiscovery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[d.ID] = d
	s.order = append(s.order, d.ID)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *memorySink) get(id string) *types.EnrichedDiscovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

// staticHeight reports a fixed chain head
type staticHeight struct {
	height uint64
}

func (s staticHeight) Height(ctx context.Context) (uint64, error) {
	return s.height, nil
}
