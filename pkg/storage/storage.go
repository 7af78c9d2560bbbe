package storage

import (
	"context"
	"errors"

	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// Common errors
var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidData is returned when data cannot be decoded
	ErrInvalidData = errors.New("invalid data")

	// ErrClosed is returned when operating on a closed storage
	ErrClosed = errors.New("storage closed")

	// ErrReadOnly is returned when attempting to write to a read-only storage
	ErrReadOnly = errors.New("storage is read-only")
)

// ContractReader provides read access to discovered contracts
type ContractReader interface {
	// GetContract returns a contract by chain and id
	GetContract(ctx context.Context, chainID, id string) (*types.EnrichedDiscovery, error)

	// GetContractsByBlockRange returns contracts created in [r.From, r.To), ordered by block
	GetContractsByBlockRange(ctx context.Context, chainID string, r scan.BlockRange, limit int) ([]*types.EnrichedDiscovery, error)
}

// ContractWriter upserts discovered contracts
type ContractWriter interface {
	// SetContract upserts a contract keyed by (ChainID, ID); last write wins
	SetContract(ctx context.Context, c *types.EnrichedDiscovery) error
}

// CoverageStore persists scanned windows, detected gaps and the live head
type CoverageStore interface {
	AddCoverage(ctx context.Context, chainID string, r scan.BlockRange) error
	GetCoverage(ctx context.Context, chainID string) ([]scan.BlockRange, error)
	SetGaps(ctx context.Context, chainID string, gaps []scan.BlockRange) error
	GetGaps(ctx context.Context, chainID string) ([]scan.BlockRange, error)
	SetHead(ctx context.Context, chainID string, height uint64) error
	GetHead(ctx context.Context, chainID string) (uint64, error)
}

// Storage combines every store the indexer uses
type Storage interface {
	ContractReader
	ContractWriter
	CoverageStore

	// Close closes the storage and releases resources
	Close() error
}

// Config holds storage configuration
type Config struct {
	// Path to the database directory
	Path string

	// Cache size in MB (default: 64)
	Cache int

	// MaxOpenFiles is the maximum number of open files (default: 1000)
	MaxOpenFiles int

	// WriteBuffer size in MB (default: 32)
	WriteBuffer int

	// ReadOnly opens the database in read-only mode
	ReadOnly bool
}

// DefaultConfig returns a default configuration
func DefaultConfig(path string) *Config {
	return &Config{
		Path:         path,
		Cache:        64,
		MaxOpenFiles: 1000,
		WriteBuffer:  32,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("path cannot be empty")
	}
	if c.Cache < 0 {
		return errors.New("cache size cannot be negative")
	}
	if c.MaxOpenFiles < 0 {
		return errors.New("max open files cannot be negative")
	}
	if c.WriteBuffer < 0 {
		return errors.New("write buffer size cannot be negative")
	}
	return nil
}
