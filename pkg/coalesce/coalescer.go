package coalesce

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// TimestampLookup resolves every block timestamp in a range with one scan.
type TimestampLookup interface {
	BlockTimestamps(ctx context.Context, r scan.BlockRange) (map[uint64]uint64, error)
}

// Coalescer merges timestamp requests issued within one tick into a single
// ranged lookup and fans the result out to every waiter.
//
// A batch is created by the first request after the previous batch was
// detached. Its execution is deferred through the Scheduler. Execution
// detaches the batch under the lock before doing any I/O, so a request that
// arrives while a batch is executing always starts a new batch.
type Coalescer struct {
	lookup TimestampLookup
	sched  Scheduler
	chain  string
	ctx    context.Context
	logger *zap.Logger

	mu      sync.Mutex
	pending *batch
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithChain labels metrics and logs.
func WithChain(chain string) Option {
	return func(c *Coalescer) { c.chain = chain }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coalescer) { c.logger = logger }
}

// WithContext sets the context batch lookups run under. Defaults to
// context.Background.
func WithContext(ctx context.Context) Option {
	return func(c *Coalescer) { c.ctx = ctx }
}

// New creates a coalescer. sched defaults to a zero-delay AfterFunc.
func New(lookup TimestampLookup, sched Scheduler, opts ...Option) (*Coalescer, error) {
	if lookup == nil {
		return nil, ErrNilLookup
	}
	if sched == nil {
		sched = AfterFunc{}
	}
	c := &Coalescer{
		lookup: lookup,
		sched:  sched,
		ctx:    context.Background(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("coalescer")
	return c, nil
}

type result struct {
	ts  uint64
	err error
}

// Pending is a single outstanding timestamp request.
type Pending struct {
	block uint64
	done  chan result
}

// Block returns the requested block number.
func (p *Pending) Block() uint64 {
	return p.block
}

// Wait blocks until the request's batch has drained or ctx is done.
func (p *Pending) Wait(ctx context.Context) (uint64, error) {
	select {
	case r := <-p.done:
		return r.ts, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *Pending) resolve(ts uint64, err error) {
	p.done <- result{ts: ts, err: err}
}

type batch struct {
	waiters map[uint64][]*Pending
	min     uint64
	max     uint64
}

func newBatch() *batch {
	return &batch{waiters: make(map[uint64][]*Pending)}
}

func (b *batch) add(p *Pending) {
	if len(b.waiters) == 0 || p.block < b.min {
		b.min = p.block
	}
	if len(b.waiters) == 0 || p.block > b.max {
		b.max = p.block
	}
	b.waiters[p.block] = append(b.waiters[p.block], p)
}

// Request registers interest in the timestamp of block and returns
// immediately. The result is delivered once the current batch executes.
func (c *Coalescer) Request(block uint64) *Pending {
	p := &Pending{block: block, done: make(chan result, 1)}

	c.mu.Lock()
	b := c.pending
	fresh := b == nil
	if fresh {
		b = newBatch()
		c.pending = b
	}
	b.add(p)
	c.mu.Unlock()

	metrics.CoalescerRequests.WithLabelValues(c.chain).Inc()
	if fresh {
		c.sched.Schedule(func() { c.execute(b) })
	}
	return p
}

// Timestamp requests block and waits for it. It only returns if something
// drains the scheduler, so it is meant for self-driving schedulers such as
// AfterFunc.
func (c *Coalescer) Timestamp(ctx context.Context, block uint64) (uint64, error) {
	return c.Request(block).Wait(ctx)
}

func (c *Coalescer) detach(b *batch) {
	c.mu.Lock()
	if c.pending == b {
		c.pending = nil
	}
	c.mu.Unlock()
}

func (c *Coalescer) execute(b *batch) {
	c.detach(b)

	r := scan.BlockRange{From: b.min, To: b.max + 1}
	metrics.CoalescerBatches.WithLabelValues(c.chain).Inc()
	metrics.CoalescerBatchSize.WithLabelValues(c.chain).Observe(float64(len(b.waiters)))

	times, err := c.lookup.BlockTimestamps(c.ctx, r)
	if err != nil {
		metrics.CoalescerBatchFailures.WithLabelValues(c.chain).Inc()
		c.logger.Warn("timestamp batch failed",
			zap.Stringer("range", r),
			zap.Int("blocks", len(b.waiters)),
			zap.Error(err),
		)
		for _, ws := range b.waiters {
			for _, w := range ws {
				w.resolve(0, err)
			}
		}
		return
	}

	for block, ws := range b.waiters {
		ts, ok := times[block]
		var werr error
		if !ok {
			metrics.CoalescerMisses.WithLabelValues(c.chain).Inc()
			werr = &NotFoundError{Block: block}
		}
		for _, w := range ws {
			w.resolve(ts, werr)
		}
	}

	c.logger.Debug("timestamp batch drained",
		zap.Stringer("range", r),
		zap.Int("blocks", len(b.waiters)),
	)
}
