package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// PebbleStorage implements Storage interface using PebbleDB
type PebbleStorage struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool

	// serializes contract upserts so the block index stays consistent
	writeMu sync.Mutex
}

// NewPebbleStorage creates a new PebbleDB storage
func NewPebbleStorage(cfg *Config) (*PebbleStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cfg.Cache) << 20), // Convert MB to bytes
		MaxOpenFiles: cfg.MaxOpenFiles,
		MemTableSize: uint64(cfg.WriteBuffer) << 20,
		ReadOnly:     cfg.ReadOnly,
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleStorage{
		db:     db,
		config: cfg,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for the storage
func (s *PebbleStorage) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

func (s *PebbleStorage) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *PebbleStorage) ensureWritable() error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Close closes the storage and releases resources
func (s *PebbleStorage) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// get copies the value out of pebble so the caller never holds the closer
func (s *PebbleStorage) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// SetContract upserts a contract record and moves its block index entry if the block changed
func (s *PebbleStorage) SetContract(ctx context.Context, c *types.EnrichedDiscovery) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if c == nil || c.ID == "" || c.ChainID == "" {
		return fmt.Errorf("%w: contract requires id and chain id", ErrInvalidData)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode contract: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	key := ContractKey(c.ChainID, c.ID)
	prev, err := s.get(key)
	switch {
	case err == nil:
		var old types.EnrichedDiscovery
		if err := json.Unmarshal(prev, &old); err == nil && old.BlockNumber != c.BlockNumber {
			if err := batch.Delete(ContractBlockIndexKey(c.ChainID, old.BlockNumber, c.ID), nil); err != nil {
				return fmt.Errorf("failed to delete stale index: %w", err)
			}
		}
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("failed to read contract: %w", err)
	}

	if err := batch.Set(key, data, nil); err != nil {
		return fmt.Errorf("failed to set contract: %w", err)
	}
	if err := batch.Set(ContractBlockIndexKey(c.ChainID, c.BlockNumber, c.ID), []byte{}, nil); err != nil {
		return fmt.Errorf("failed to set contract index: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit contract: %w", err)
	}
	return nil
}

// GetContract returns a contract by chain and id
func (s *PebbleStorage) GetContract(ctx context.Context, chainID, id string) (*types.EnrichedDiscovery, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	data, err := s.get(ContractKey(chainID, id))
	if err != nil {
		return nil, err
	}

	var c types.EnrichedDiscovery
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &c, nil
}

// GetContractsByBlockRange returns contracts created in [r.From, r.To) ordered by block then id.
// A limit of zero or less means no limit.
func (s *PebbleStorage) GetContractsByBlockRange(ctx context.Context, chainID string, r scan.BlockRange, limit int) ([]*types.EnrichedDiscovery, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	if r.Empty() {
		return []*types.EnrichedDiscovery{}, nil
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: ContractBlockIndexBound(chainID, r.From),
		UpperBound: ContractBlockIndexBound(chainID, r.To),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	result := []*types.EnrichedDiscovery{}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, id, err := ParseContractBlockIndexKey(iter.Key())
		if err != nil {
			s.logger.Warn("skipping malformed index key", zap.ByteString("key", iter.Key()))
			continue
		}
		c, err := s.GetContract(ctx, chainID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load contract %s: %w", id, err)
		}
		result = append(result, c)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return result, nil
}

// AddCoverage records a window that a handler completed
func (s *PebbleStorage) AddCoverage(ctx context.Context, chainID string, r scan.BlockRange) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if r.Empty() {
		return nil
	}
	return s.db.Set(CoverageKey(chainID, r.From), EncodeUint64(r.To), pebble.Sync)
}

// GetCoverage returns recorded windows ordered by start block
func (s *PebbleStorage) GetCoverage(ctx context.Context, chainID string) ([]scan.BlockRange, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	return s.ranges(CoveragePrefix(chainID))
}

// SetGaps replaces the recorded gaps of a chain
func (s *PebbleStorage) SetGaps(ctx context.Context, chainID string, gaps []scan.BlockRange) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}

	prefix := GapPrefix(chainID)
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
		return fmt.Errorf("failed to clear gaps: %w", err)
	}
	for _, g := range gaps {
		if g.Empty() {
			continue
		}
		if err := batch.Set(GapKey(chainID, g.From), EncodeUint64(g.To), nil); err != nil {
			return fmt.Errorf("failed to set gap: %w", err)
		}
	}
	return batch.Commit(pebble.Sync)
}

// GetGaps returns recorded gaps ordered by start block
func (s *PebbleStorage) GetGaps(ctx context.Context, chainID string) ([]scan.BlockRange, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	return s.ranges(GapPrefix(chainID))
}

// SetHead records the last block handled by the live handler
func (s *PebbleStorage) SetHead(ctx context.Context, chainID string, height uint64) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	return s.db.Set(HeadKey(chainID), EncodeUint64(height), pebble.Sync)
}

// GetHead returns the last block handled by the live handler
func (s *PebbleStorage) GetHead(ctx context.Context, chainID string) (uint64, error) {
	if err := s.ensureNotClosed(); err != nil {
		return 0, err
	}
	data, err := s.get(HeadKey(chainID))
	if err != nil {
		return 0, err
	}
	return DecodeUint64(data)
}

// ranges decodes {prefix}{from:020d} -> to entries
func (s *PebbleStorage) ranges(prefix []byte) ([]scan.BlockRange, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	out := []scan.BlockRange{}
	for iter.First(); iter.Valid(); iter.Next() {
		from, err := strconv.ParseUint(string(iter.Key()[len(prefix):]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidData, iter.Key())
		}
		to, err := DecodeUint64(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, scan.BlockRange{From: from, To: to})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return out, nil
}

// Compile-time check
var _ Storage = (*PebbleStorage)(nil)
