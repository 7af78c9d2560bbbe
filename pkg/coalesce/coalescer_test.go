package coalesce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// mockLookup answers from a fixed map and records every range it scans
type mockLookup struct {
	mu     sync.Mutex
	times  map[uint64]uint64
	err    error
	ranges []scan.BlockRange

	// onLookup runs inside the lookup before it answers
	onLookup func()
}

func (m *mockLookup) BlockTimestamps(ctx context.Context, r scan.BlockRange) (map[uint64]uint64, error) {
	m.mu.Lock()
	m.ranges = append(m.ranges, r)
	hook := m.onLookup
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[uint64]uint64)
	for b, ts := range m.times {
		if b >= r.From && b < r.To {
			out[b] = ts
		}
	}
	return out, nil
}

func (m *mockLookup) calls() []scan.BlockRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scan.BlockRange(nil), m.ranges...)
}

func newTestCoalescer(t *testing.T, lookup TimestampLookup, sched Scheduler) *Coalescer {
	t.Helper()
	c, err := New(lookup, sched, WithChain("test"))
	require.NoError(t, err)
	return c
}

func waitAll(t *testing.T, ps ...*Pending) ([]uint64, []error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ts := make([]uint64, len(ps))
	errs := make([]error, len(ps))
	for i, p := range ps {
		ts[i], errs[i] = p.Wait(ctx)
	}
	return ts, errs
}

func TestNew_NilLookup(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNilLookup)
}

func TestCoalescer_OneLookupPerTick(t *testing.T) {
	lookup := &mockLookup{times: map[uint64]uint64{100: 1000, 102: 1020, 105: 1050}}
	tick := NewTickQueue()
	c := newTestCoalescer(t, lookup, tick)

	a := c.Request(105)
	b := c.Request(100)
	d := c.Request(102)
	dup := c.Request(105)

	assert.Equal(t, 1, tick.Len(), "only the first request schedules a batch")
	assert.Empty(t, lookup.calls(), "nothing runs before the tick ends")

	assert.Equal(t, 1, tick.Drain())

	ts, errs := waitAll(t, a, b, d, dup)
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{1050, 1000, 1020, 1050}, ts)
	assert.Equal(t, []scan.BlockRange{{From: 100, To: 106}}, lookup.calls())
}

func TestCoalescer_NextTickStartsNewBatch(t *testing.T) {
	lookup := &mockLookup{times: map[uint64]uint64{100: 1000, 105: 1050, 300: 3000}}
	tick := NewTickQueue()
	c := newTestCoalescer(t, lookup, tick)

	first := c.Request(100)
	second := c.Request(105)
	tick.Drain()
	_, errs := waitAll(t, first, second)
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	third := c.Request(300)
	assert.Equal(t, 1, tick.Len())
	tick.Drain()
	ts, errs := waitAll(t, third)
	require.NoError(t, errs[0])
	assert.Equal(t, uint64(3000), ts[0])

	assert.Equal(t, []scan.BlockRange{{From: 100, To: 106}, {From: 300, To: 301}}, lookup.calls())
}

func TestCoalescer_RequestDuringLookupJoinsNewBatch(t *testing.T) {
	lookup := &mockLookup{times: map[uint64]uint64{10: 100, 20: 200}}
	tick := NewTickQueue()
	c := newTestCoalescer(t, lookup, tick)

	var late *Pending
	lookup.onLookup = func() {
		if late == nil {
			late = c.Request(20)
		}
	}

	early := c.Request(10)
	assert.Equal(t, 2, tick.Drain(), "the late request schedules its own batch")

	ts, errs := waitAll(t, early, late)
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, []uint64{100, 200}, ts)
	assert.Equal(t, []scan.BlockRange{{From: 10, To: 11}, {From: 20, To: 21}}, lookup.calls())
}

func TestCoalescer_PartialMiss(t *testing.T) {
	lookup := &mockLookup{times: map[uint64]uint64{100: 1000, 105: 1050}}
	tick := NewTickQueue()
	c := newTestCoalescer(t, lookup, tick)

	a := c.Request(100)
	missing := c.Request(103)
	missingToo := c.Request(103)
	b := c.Request(105)
	tick.Drain()

	ts, errs := waitAll(t, a, missing, missingToo, b)
	require.NoError(t, errs[0])
	require.NoError(t, errs[3])
	assert.Equal(t, uint64(1000), ts[0])
	assert.Equal(t, uint64(1050), ts[3])

	for _, err := range errs[1:3] {
		require.ErrorIs(t, err, ErrTimestampNotFound)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, uint64(103), nf.Block)
	}
}

func TestCoalescer_TotalFailure(t *testing.T) {
	boom := errors.New("hypersync unavailable")
	lookup := &mockLookup{err: boom}
	tick := NewTickQueue()
	c := newTestCoalescer(t, lookup, tick)

	ps := []*Pending{c.Request(1), c.Request(2), c.Request(2), c.Request(9)}
	tick.Drain()

	_, errs := waitAll(t, ps...)
	for _, err := range errs {
		assert.Same(t, boom, err)
	}
	assert.Len(t, lookup.calls(), 1, "no retry")
}

func TestCoalescer_AfterFuncScheduler(t *testing.T) {
	lookup := &mockLookup{times: map[uint64]uint64{7: 70}}
	c := newTestCoalescer(t, lookup, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ts, err := c.Timestamp(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), ts)
}

func TestPending_WaitHonoursContext(t *testing.T) {
	c := newTestCoalescer(t, &mockLookup{}, NewTickQueue())
	p := c.Request(1)
	assert.Equal(t, uint64(1), p.Block())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoalescer_ConcurrentRequests(t *testing.T) {
	times := make(map[uint64]uint64)
	for b := uint64(0); b < 50; b++ {
		times[b] = b * 10
	}
	lookup := &mockLookup{times: times}
	tick := NewTickQueue()
	c := newTestCoalescer(t, lookup, tick)

	var wg sync.WaitGroup
	for b := uint64(0); b < 50; b++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := c.Request(b)
			tick.Drain()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			ts, err := p.Wait(ctx)
			assert.NoError(t, err)
			assert.Equal(t, b*10, ts)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, tick.Len())
}
