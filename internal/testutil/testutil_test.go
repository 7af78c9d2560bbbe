package testutil

import (
	"context"
	"testing"

	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/source"
)

var _ source.Source = (*ChainSource)(nil)

// TestNewTestLogger tests creating a test logger
func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	if logger == nil {
		t.Fatal("NewTestLogger() returned nil")
	}
}

// TestChainSource_CreatedContracts tests scanning the in-memory source end to end
func TestChainSource_CreatedContracts(t *testing.T) {
	src := NewChainSource(1000,
		Creation{Address: "0xtx", Block: 150},
		Creation{Address: "0xtrace", Block: 150, Trace: true},
		Creation{Address: "0xlate", Block: 900},
	)
	s, err := scan.NewScanner(src, "test", nil)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}

	got, err := s.CreatedContracts(context.Background(), scan.BlockRange{From: 1, To: 201})
	if err != nil {
		t.Fatalf("CreatedContracts() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "0xtrace" || got[1].ID != "0xtx" {
		t.Errorf("CreatedContracts() = %v, want traces before transactions", got)
	}
	if n := len(src.Queries()); n != 2 {
		t.Errorf("queries = %d, want 2 pages of 100 blocks", n)
	}
}

// TestChainSource_BlockTimestamps tests block listing with a missing block
func TestChainSource_BlockTimestamps(t *testing.T) {
	src := NewChainSource(1000)
	src.Missing[5] = true
	src.Times[6] = 42

	s, err := scan.NewScanner(src, "test", nil)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	times, err := s.BlockTimestamps(context.Background(), scan.BlockRange{From: 4, To: 7})
	if err != nil {
		t.Fatalf("BlockTimestamps() error = %v", err)
	}
	if _, ok := times[5]; ok {
		t.Error("block 5 should be missing")
	}
	if times[6] != 42 || times[4] != src.BaseTime+4 {
		t.Errorf("unexpected timestamps %v", times)
	}
}
