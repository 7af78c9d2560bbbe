package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/creation-indexer/internal/logger"
	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/storage"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// Common errors
var (
	ErrNilHandlerFunc   = errors.New("handler func cannot be nil")
	ErrChainMismatch    = errors.New("handler chain does not match host chain")
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrNoHandlers       = errors.New("no handlers registered")
)

// Block is the argument of a handler invocation.
type Block struct {
	Number uint64
}

// Context is what a handler invocation may do besides reading its block.
type Context interface {
	// Effect runs fn through the memoized, retried call bridge.
	Effect(ctx context.Context, name string, input any, fn EffectFunc) (any, error)

	// Set upserts an enriched discovery into the sink.
	Set(ctx context.Context, d *types.EnrichedDiscovery) error
}

// HandlerFunc is a block-handler callback.
type HandlerFunc func(ctx context.Context, b Block, hc Context) error

// Heighter reports the chain head.
type Heighter interface {
	Height(ctx context.Context) (uint64, error)
}

// HostConfig configures a Host.
type HostConfig struct {
	ChainID string

	// Heights drives live handlers
	Heights Heighter

	Sink    Sink
	Effects *Effects

	// Coverage records completed windows, gaps and the live head. Optional.
	Coverage storage.CoverageStore

	// Workers bounds concurrent invocations of a bounded handler (default: 1)
	Workers int

	// PollInterval is how often live handlers check the head (default: 2s)
	PollInterval time.Duration

	Logger *zap.Logger
}

type registration struct {
	handler Handler
	fn      HandlerFunc
}

// Host schedules block-handler invocations for one chain. Bounded handlers
// run with up to Workers invocations at once. Live handlers run one block at
// a time in order as the head advances. A failed invocation is re-invoked
// under the effect bridge's backoff policy; protocol violations are not.
// An invocation that still fails stops Run.
type Host struct {
	cfg    HostConfig
	logger *zap.Logger

	mu       sync.Mutex
	handlers []registration
}

// NewHost creates a host.
func NewHost(cfg HostConfig) (*Host, error) {
	if cfg.ChainID == "" {
		return nil, fmt.Errorf("chain id cannot be empty")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if cfg.Effects == nil {
		effects, err := NewEffects(DefaultEffectConfig())
		if err != nil {
			return nil, err
		}
		cfg.Effects = effects
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Host{
		cfg:    cfg,
		logger: cfg.Logger.Named("host").With(zap.String("chain", cfg.ChainID)),
	}, nil
}

// Register adds a handler. Handlers must be registered before Run.
func (h *Host) Register(handler Handler, fn HandlerFunc) error {
	if fn == nil {
		return ErrNilHandlerFunc
	}
	if err := handler.Validate(); err != nil {
		return err
	}
	if handler.ChainID != h.cfg.ChainID {
		return fmt.Errorf("%w: %s != %s", ErrChainMismatch, handler.ChainID, h.cfg.ChainID)
	}
	if handler.Live() && h.cfg.Heights == nil {
		return fmt.Errorf("handler %s: live handlers need a height source", handler.Name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.handlers {
		if r.handler.Name == handler.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateHandler, handler.Name)
		}
	}
	h.handlers = append(h.handlers, registration{handler: handler, fn: fn})
	return nil
}

// Handlers returns the registered handlers in registration order.
func (h *Host) Handlers() []Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Handler, len(h.handlers))
	for i, r := range h.handlers {
		out[i] = r.handler
	}
	return out
}

// Run invokes every registered handler until bounded handlers finish and
// ctx is cancelled, or until an invocation fails.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	regs := append([]registration(nil), h.handlers...)
	h.mu.Unlock()

	if len(regs) == 0 {
		return ErrNoHandlers
	}

	// bounded handlers check coverage up to where the first live handler begins
	var liveStart *uint64
	for _, r := range regs {
		if r.handler.Live() && (liveStart == nil || r.handler.StartBlock < *liveStart) {
			start := r.handler.StartBlock
			liveStart = &start
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range regs {
		if r.handler.Live() {
			g.Go(func() error { return h.runLive(gctx, r) })
		} else {
			g.Go(func() error { return h.runBounded(gctx, r, liveStart) })
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (h *Host) runBounded(ctx context.Context, r registration, liveStart *uint64) error {
	done := h.coveredStarts(ctx)
	inv := r.handler.Invocations()

	h.logger.Info("starting bounded handler",
		zap.String("handler", r.handler.Name),
		zap.Int("invocations", len(inv)),
		zap.Int("already_covered", len(done)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)
	for _, n := range inv {
		if to, ok := done[n]; ok && to == r.handler.Window(n).To {
			continue
		}
		g.Go(func() error { return h.invoke(gctx, r, n) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	h.logger.Info("bounded handler finished", zap.String("handler", r.handler.Name))

	if h.cfg.Coverage != nil && liveStart != nil {
		if _, err := h.CheckGaps(ctx, r.handler.StartBlock, *liveStart); err != nil {
			h.logger.Warn("coverage check failed", zap.Error(err))
		}
	}
	return nil
}

func (h *Host) runLive(ctx context.Context, r registration) error {
	next := r.handler.StartBlock
	if h.cfg.Coverage != nil {
		if head, err := h.cfg.Coverage.GetHead(ctx, h.cfg.ChainID); err == nil && head >= next {
			next = head + r.handler.Interval
		}
	}

	h.logger.Info("starting live handler",
		zap.String("handler", r.handler.Name),
		zap.Uint64("from_block", next),
	)

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		head, err := h.cfg.Heights.Height(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logger.Warn("failed to fetch chain head", zap.Error(err))
		} else {
			metrics.HeadBlock.WithLabelValues(h.cfg.ChainID).Set(float64(head))
			for next <= head {
				if err := h.invoke(ctx, r, next); err != nil {
					return err
				}
				if h.cfg.Coverage != nil {
					if err := h.cfg.Coverage.SetHead(ctx, h.cfg.ChainID, next); err != nil {
						h.logger.Warn("failed to record head", zap.Uint64("block", next), zap.Error(err))
					}
				}
				next += r.handler.Interval
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *Host) invoke(ctx context.Context, r registration, n uint64) error {
	start := time.Now()
	ctx = logger.WithLogger(ctx, h.logger.With(
		zap.String("handler", r.handler.Name),
		zap.Uint64("block", n),
	))
	hc := &handlerContext{host: h}

	op := func() error {
		attempt := time.Now()
		err := r.fn(ctx, Block{Number: n}, hc)

		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.HandlerInvocations.WithLabelValues(h.cfg.ChainID, r.handler.Name, status).Inc()
		metrics.HandlerLatency.WithLabelValues(h.cfg.ChainID, r.handler.Name).Observe(time.Since(attempt).Seconds())

		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.HandlerRetries.WithLabelValues(h.cfg.ChainID, r.handler.Name).Inc()
		h.logger.Warn("invocation failed, re-invoking",
			zap.String("handler", r.handler.Name),
			zap.Uint64("block", n),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	window := r.handler.Window(n)
	if err := backoff.RetryNotify(op, h.cfg.Effects.newBackOff(ctx), notify); err != nil {
		return fmt.Errorf("handler %s at block %d: %w", r.handler.Name, n, err)
	}

	if h.cfg.Coverage != nil {
		if err := h.cfg.Coverage.AddCoverage(ctx, h.cfg.ChainID, window); err != nil {
			h.logger.Warn("failed to record coverage", zap.Stringer("window", window), zap.Error(err))
		}
	}

	h.logger.Debug("handler invoked",
		zap.String("handler", r.handler.Name),
		zap.Stringer("window", window),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// coveredStarts maps the start of every recorded window to its end.
func (h *Host) coveredStarts(ctx context.Context) map[uint64]uint64 {
	out := make(map[uint64]uint64)
	if h.cfg.Coverage == nil {
		return out
	}
	windows, err := h.cfg.Coverage.GetCoverage(ctx, h.cfg.ChainID)
	if err != nil {
		h.logger.Warn("failed to load coverage", zap.Error(err))
		return out
	}
	for _, w := range windows {
		out[w.From] = w.To
	}
	return out
}

// CheckGaps compares recorded coverage against [from, to), stores and
// reports the uncovered ranges. It does not scan them.
func (h *Host) CheckGaps(ctx context.Context, from, to uint64) ([]scan.BlockRange, error) {
	if h.cfg.Coverage == nil {
		return nil, fmt.Errorf("coverage store not configured")
	}
	windows, err := h.cfg.Coverage.GetCoverage(ctx, h.cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load coverage: %w", err)
	}

	gaps := DetectGaps(from, to, windows)
	if err := h.cfg.Coverage.SetGaps(ctx, h.cfg.ChainID, gaps); err != nil {
		return nil, fmt.Errorf("failed to store gaps: %w", err)
	}

	metrics.CoverageGapBlocks.WithLabelValues(h.cfg.ChainID).Set(float64(GapBlocks(gaps)))
	for _, g := range gaps {
		h.logger.Warn("coverage gap", zap.Stringer("range", g), zap.Uint64("blocks", g.Len()))
	}
	return gaps, nil
}

type handlerContext struct {
	host *Host
}

func (c *handlerContext) Effect(ctx context.Context, name string, input any, fn EffectFunc) (any, error) {
	return c.host.cfg.Effects.Call(ctx, name, input, fn)
}

func (c *handlerContext) Set(ctx context.Context, d *types.EnrichedDiscovery) error {
	if err := c.host.cfg.Sink.Upsert(ctx, d); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", d.ID, err)
	}
	metrics.DiscoveriesEmitted.WithLabelValues(c.host.cfg.ChainID).Inc()
	return nil
}
