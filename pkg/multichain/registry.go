package multichain

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps chain IDs to their running bundles.
type Registry struct {
	chains map[string]*Chain
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRegistry creates a new chain registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		chains: make(map[string]*Chain),
		logger: logger.Named("registry"),
	}
}

// Register adds a chain to the registry.
func (r *Registry) Register(chain *Chain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.chains[chain.Config.ID]; exists {
		return ErrChainAlreadyExists
	}

	r.chains[chain.Config.ID] = chain
	r.logger.Info("chain registered",
		zap.String("id", chain.Config.ID),
		zap.String("name", chain.Config.Name),
	)
	return nil
}

// Unregister removes a chain from the registry.
func (r *Registry) Unregister(chainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.chains[chainID]; !exists {
		return ErrChainNotFound
	}

	delete(r.chains, chainID)
	r.logger.Info("chain unregistered", zap.String("id", chainID))
	return nil
}

// Get returns a chain by ID.
func (r *Registry) Get(chainID string) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain, exists := r.chains[chainID]
	if !exists {
		return nil, ErrChainNotFound
	}
	return chain, nil
}

// List returns all registered chains ordered by ID.
func (r *Registry) List() []*Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chains := make([]*Chain, 0, len(r.chains))
	for _, chain := range r.chains {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].Config.ID < chains[j].Config.ID })
	return chains
}

// Count returns the number of registered chains.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains)
}

// CountByStatus returns the count of chains with the given status.
func (r *Registry) CountByStatus(status ChainStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, chain := range r.chains {
		if chain.Status() == status {
			count++
		}
	}
	return count
}

// Exists checks if a chain is registered.
func (r *Registry) Exists(chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.chains[chainID]
	return exists
}
