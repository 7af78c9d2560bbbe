package multichain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/dispatch"
	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/source"
	"github.com/0xmhha/creation-indexer/pkg/storage"
)

// ChainDeps are the collaborators shared by every chain.
type ChainDeps struct {
	Sink    dispatch.Sink
	Effects *dispatch.Effects

	// Coverage is optional
	Coverage storage.CoverageStore
}

// Chain bundles one chain's source, scanner, pipeline and handler plan.
// Timestamp coalescing happens per invocation inside the pipeline, under
// the invocation's context.
type Chain struct {
	Config ChainConfig
	Source source.Source

	Scanner  *scan.Scanner
	Pipeline *dispatch.Pipeline

	deps   ChainDeps
	logger *zap.Logger

	mu        sync.RWMutex
	status    ChainStatus
	plan      *dispatch.Plan
	host      *dispatch.Host
	startedAt *time.Time
	lastError error
}

// NewChain wires a chain around src. The scanner serves both the window
// scans and the block listings behind timestamp batches.
func NewChain(cfg ChainConfig, src source.Source, deps ChainDeps, logger *zap.Logger) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewChainError(cfg.ID, ErrPlanFailed, err)
	}
	if src == nil {
		return nil, NewChainError(cfg.ID, ErrSourceRequired, nil)
	}
	if deps.Sink == nil {
		return nil, NewChainError(cfg.ID, ErrSinkRequired, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("chain", cfg.ID))

	scanner, err := scan.NewScanner(src, cfg.ID, logger)
	if err != nil {
		return nil, NewChainError(cfg.ID, ErrSourceInitFailed, err)
	}

	pipeline, err := dispatch.NewPipeline(cfg.ID, scanner, scanner, logger)
	if err != nil {
		return nil, NewChainError(cfg.ID, ErrSourceInitFailed, err)
	}

	return &Chain{
		Config:   cfg,
		Source:   src,
		Scanner:  scanner,
		Pipeline: pipeline,
		deps:     deps,
		logger:   logger,
		status:   StatusRegistered,
	}, nil
}

// Run reads the head, plans the historical and live handlers and invokes
// them until ctx is cancelled or an invocation fails.
func (c *Chain) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusStarting || c.status == StatusRunning {
		c.mu.Unlock()
		return ErrChainAlreadyRunning
	}
	c.status = StatusStarting
	c.mu.Unlock()

	host, plan, err := c.prepare(ctx)
	if err != nil {
		c.fail(err)
		return err
	}

	now := time.Now()
	c.mu.Lock()
	c.status = StatusRunning
	c.startedAt = &now
	c.plan = &plan
	c.host = host
	c.mu.Unlock()

	c.logger.Info("chain running",
		zap.Uint64("safe_block", plan.SafeBlock),
		zap.Uint64("start_block", plan.Historical.StartBlock),
		zap.Uint64("live_start_block", plan.Live.StartBlock),
		zap.Uint64("interval", c.Config.Interval),
	)

	if err := host.Run(ctx); err != nil {
		err = NewChainError(c.Config.ID, ErrChainRunFailed, err)
		c.fail(err)
		return err
	}

	c.setStatus(StatusStopped)
	return nil
}

func (c *Chain) prepare(ctx context.Context) (*dispatch.Host, dispatch.Plan, error) {
	height, err := c.Source.Height(ctx)
	if err != nil {
		return nil, dispatch.Plan{}, NewChainError(c.Config.ID, ErrHeadUnavailable, err)
	}

	safe := dispatch.SafeBlock(height, c.Config.ReorgThreshold)
	plan := dispatch.NewPlan(c.Config.ID, c.Config.StartBlock, c.Config.Interval, safe)

	host, err := dispatch.NewHost(dispatch.HostConfig{
		ChainID:      c.Config.ID,
		Heights:      c.Source,
		Sink:         c.deps.Sink,
		Effects:      c.deps.Effects,
		Coverage:     c.deps.Coverage,
		Workers:      c.Config.Workers,
		PollInterval: c.Config.PollInterval,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, plan, NewChainError(c.Config.ID, ErrPlanFailed, err)
	}

	if err := host.Register(plan.Historical, c.Pipeline.HandlerFunc(plan.Historical.Interval)); err != nil {
		return nil, plan, NewChainError(c.Config.ID, ErrPlanFailed, err)
	}
	if err := host.Register(plan.Live, c.Pipeline.HandlerFunc(plan.Live.Interval)); err != nil {
		return nil, plan, NewChainError(c.Config.ID, ErrPlanFailed, err)
	}
	return host, plan, nil
}

// Plan returns the handler plan once the chain is running.
func (c *Chain) Plan() (dispatch.Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.plan == nil {
		return dispatch.Plan{}, false
	}
	return *c.plan, true
}

// Status returns the current status.
func (c *Chain) Status() ChainStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LastError returns the error that stopped the chain, if any.
func (c *Chain) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Info returns a read-only snapshot of the chain.
func (c *Chain) Info() ChainInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := ChainInfo{
		ID:             c.Config.ID,
		Name:           c.Config.Name,
		ChainID:        c.Config.ChainID,
		Status:         c.status,
		StartBlock:     c.Config.StartBlock,
		Interval:       c.Config.Interval,
		ReorgThreshold: c.Config.ReorgThreshold,
		StartedAt:      c.startedAt,
	}
	if c.plan != nil {
		info.SafeBlock = c.plan.SafeBlock
		info.LiveStartBlock = c.plan.Live.StartBlock
	}
	return info
}

// Close releases the chain's source.
func (c *Chain) Close() {
	c.Source.Close()
}

func (c *Chain) setStatus(status ChainStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *Chain) fail(err error) {
	c.mu.Lock()
	c.status = StatusError
	c.lastError = err
	c.mu.Unlock()
	c.logger.Error("chain stopped", zap.Error(err))
}

func (c *Chain) String() string {
	return fmt.Sprintf("%s (%d)", c.Config.ID, c.Config.ChainID)
}
