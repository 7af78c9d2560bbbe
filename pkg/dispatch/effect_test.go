package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

func newTestEffects(t *testing.T, retries uint64) *Effects {
	t.Helper()
	e, err := NewEffects(EffectConfig{
		CacheSize:       16,
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxElapsedTime:  time.Second,
	})
	require.NoError(t, err)
	return e
}

func TestEffects_Memoized(t *testing.T) {
	e := newTestEffects(t, 0)
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "ok", nil
	}

	for i := 0; i < 3; i++ {
		v, err := e.Call(ctx, "probe", windowInput{ChainID: "1", From: 1, To: 201}, fn)
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err := e.Call(ctx, "probe", windowInput{ChainID: "1", From: 201, To: 401}, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, e.Len())
}

func TestEffects_RetriesTransientFailures(t *testing.T) {
	e := newTestEffects(t, 3)

	var calls atomic.Int32
	v, err := e.Call(context.Background(), "flaky", 1, func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEffects_GivesUpAfterMaxRetries(t *testing.T) {
	e := newTestEffects(t, 2)
	boom := errors.New("boom")

	var calls atomic.Int32
	_, err := e.Call(context.Background(), "down", 1, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, e.Len(), "failures are not memoized")
}

func TestEffects_ProtocolViolationIsPermanent(t *testing.T) {
	e := newTestEffects(t, 5)

	var calls atomic.Int32
	_, err := e.Call(context.Background(), "scan", 1, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, fmt.Errorf("page: %w", &scan.CursorError{Cursor: 10, NextCursor: 10})
	})
	require.ErrorIs(t, err, scan.ErrProtocolViolation)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEffects_ConcurrentCallsShareExecution(t *testing.T) {
	e := newTestEffects(t, 0)

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.Call(context.Background(), "slow", "k", fn)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestEffects_UnencodableInput(t *testing.T) {
	e := newTestEffects(t, 0)
	_, err := e.Call(context.Background(), "bad", make(chan int), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.Error(t, err)
}
