package multichain

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/source"
)

// SourceFactory builds the source a chain scans.
type SourceFactory func(cfg ChainConfig) (source.Source, error)

// Manager builds one Chain per enabled config and runs them side by side.
// A failing chain is logged and marked as errored; the others keep going.
type Manager struct {
	chains   []ChainConfig
	factory  SourceFactory
	deps     ChainDeps
	registry *Registry
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewManager creates a new multi-chain manager.
func NewManager(chains []ChainConfig, factory SourceFactory, deps ChainDeps, logger *zap.Logger) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("source factory cannot be nil")
	}
	if err := ValidateChains(chains); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		chains:   chains,
		factory:  factory,
		deps:     deps,
		registry: NewRegistry(logger),
		logger:   logger.Named("multichain"),
	}, nil
}

// Registry returns the chain registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RegisterChain builds a chain from cfg and adds it to the registry.
func (m *Manager) RegisterChain(cfg ChainConfig) (*Chain, error) {
	if m.registry.Exists(cfg.ID) {
		return nil, NewChainError(cfg.ID, ErrChainAlreadyExists, nil)
	}

	src, err := m.factory(cfg)
	if err != nil {
		return nil, NewChainError(cfg.ID, ErrSourceInitFailed, err)
	}

	chain, err := NewChain(cfg, src, m.deps, m.logger)
	if err != nil {
		src.Close()
		return nil, err
	}

	if err := m.registry.Register(chain); err != nil {
		chain.Close()
		return nil, NewChainError(cfg.ID, err, nil)
	}
	return chain, nil
}

// Run registers every enabled chain and runs them until ctx is cancelled.
// It returns the joined errors of the chains that failed.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrChainAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	enabled := EnabledChains(m.chains)
	m.logger.Info("starting multi-chain manager", zap.Int("chainCount", len(enabled)))

	var errs []error
	for _, cfg := range enabled {
		if _, err := m.RegisterChain(cfg); err != nil {
			m.logger.Error("failed to register chain", zap.String("chainId", cfg.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
	)
	for _, chain := range m.registry.List() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := chain.Run(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, chain := range m.registry.List() {
		chain.Close()
	}

	m.logger.Info("multi-chain manager stopped")
	return errors.Join(errs...)
}
