// Package source defines the remote ranged-fetch boundary the scanner pages
// through. Implementations live in subpackages.
package source

import (
	"context"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// Source is a cursor-paginated view of chain history.
type Source interface {
	scan.Fetcher

	// Height returns the latest block the source can serve.
	Height(ctx context.Context) (uint64, error)

	// Close releases connections held by the source.
	Close()
}

// Kind names a Source implementation in configuration.
type Kind string

const (
	KindHyperSync Kind = "hypersync"
	KindRPC       Kind = "rpc"
)
