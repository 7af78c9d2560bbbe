// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/storage"
)

// NewTestLogger creates a development logger for tests
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return logger
}

// NewTestStorage opens a PebbleDB storage in a temporary directory that is
// closed when the test ends
func NewTestStorage(t *testing.T) *storage.PebbleStorage {
	t.Helper()
	s, err := storage.NewPebbleStorage(storage.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Creation is one contract deployment served by a ChainSource
type Creation struct {
	Address string
	Block   uint64

	// Trace selects whether the row comes back as a trace or a transaction
	Trace bool
}

// ChainSource is an in-memory source.Source. Pages cover at most PageBlocks
// blocks. Every block below Head has timestamp BaseTime + block unless
// overridden in Times.
type ChainSource struct {
	mu sync.Mutex

	Head       uint64
	PageBlocks uint64
	BaseTime   uint64
	Creations  []Creation
	Times      map[uint64]uint64
	Missing    map[uint64]bool

	// Err, when set, is returned by every Get
	Err error

	// ListingFailures makes the next n block-listing Gets fail with ListingErr
	ListingFailures int
	ListingErr      error

	queries []scan.Query
}

// NewChainSource creates a source with the given head and creations
func NewChainSource(head uint64, creations ...Creation) *ChainSource {
	return &ChainSource{
		Head:       head,
		PageBlocks: 100,
		BaseTime:   1438269973,
		Creations:  creations,
		Times:      make(map[uint64]uint64),
		Missing:    make(map[uint64]bool),
	}
}

// Get implements scan.Fetcher
func (s *ChainSource) Get(ctx context.Context, q scan.Query) (*scan.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, q)
	if s.Err != nil {
		return nil, s.Err
	}
	if q.IncludeAllBlocks && s.ListingFailures > 0 {
		s.ListingFailures--
		return nil, s.ListingErr
	}

	end := q.FromBlock + s.PageBlocks
	if q.ToBlock > 0 && q.ToBlock < end {
		end = q.ToBlock
	}
	page := &scan.Page{NextCursor: end}

	if len(q.Traces) > 0 {
		var traces, txs []scan.RawRecord
		for _, c := range s.Creations {
			if c.Block < q.FromBlock || c.Block >= end {
				continue
			}
			if c.Trace {
				traces = append(traces, scan.TraceRecord{Address: scan.String(c.Address), BlockNumber: scan.Uint64(c.Block)})
			} else {
				txs = append(txs, scan.TransactionRecord{ContractAddress: scan.String(c.Address), BlockNumber: scan.Uint64(c.Block)})
			}
		}
		page.Records = append(traces, txs...)
	}

	if q.IncludeAllBlocks {
		for n := q.FromBlock; n < end && n <= s.Head; n++ {
			if s.Missing[n] {
				continue
			}
			ts, ok := s.Times[n]
			if !ok {
				ts = s.BaseTime + n
			}
			page.Blocks = append(page.Blocks, scan.BlockRecord{Number: scan.Uint64(n), Timestamp: scan.Uint64(ts)})
		}
	}
	return page, nil
}

// Height implements source.Source
func (s *ChainSource) Height(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Head, nil
}

// SetHead moves the chain head
func (s *ChainSource) SetHead(head uint64) {
	s.mu.Lock()
	s.Head = head
	s.mu.Unlock()
}

// Close implements source.Source
func (s *ChainSource) Close() {}

// Queries returns every query served so far
func (s *ChainSource) Queries() []scan.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scan.Query(nil), s.queries...)
}
