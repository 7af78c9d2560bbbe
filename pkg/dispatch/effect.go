package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// EffectFunc is the side-effecting call wrapped by an effect.
type EffectFunc func(ctx context.Context) (any, error)

// EffectConfig configures the effect bridge.
type EffectConfig struct {
	// CacheSize bounds the number of memoized results (default: 1024)
	CacheSize int

	// MaxRetries is the number of retries after the first attempt (default: 3)
	MaxRetries uint64

	// InitialInterval is the first backoff delay (default: 500ms)
	InitialInterval time.Duration

	// MaxElapsedTime caps the total time spent retrying one call (default: 1m)
	MaxElapsedTime time.Duration

	Logger *zap.Logger
}

// DefaultEffectConfig returns the default effect configuration.
func DefaultEffectConfig() EffectConfig {
	return EffectConfig{
		CacheSize:       1024,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxElapsedTime:  time.Minute,
	}
}

// Effects is a memoized, retried call bridge. Calls are keyed by name and
// the JSON encoding of their input. Concurrent calls with the same key share
// one execution, and successful results are cached. Failed calls are not.
type Effects struct {
	cfg    EffectConfig
	cache  *lru.Cache[string, any]
	group  singleflight.Group
	logger *zap.Logger
}

// NewEffects creates an effect bridge.
func NewEffects(cfg EffectConfig) (*Effects, error) {
	def := DefaultEffectConfig()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = def.MaxElapsedTime
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	cache, err := lru.New[string, any](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create effect cache: %w", err)
	}

	return &Effects{
		cfg:    cfg,
		cache:  cache,
		logger: cfg.Logger.Named("effects"),
	}, nil
}

// Call runs fn once per (name, input), retrying failures with exponential
// backoff. Protocol violations and context errors are not retried.
func (e *Effects) Call(ctx context.Context, name string, input any, fn EffectFunc) (any, error) {
	key, err := effectKey(name, input)
	if err != nil {
		return nil, err
	}

	if v, ok := e.cache.Get(key); ok {
		metrics.EffectCacheHits.WithLabelValues(name).Inc()
		return v, nil
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		if v, ok := e.cache.Get(key); ok {
			return v, nil
		}

		var out any
		op := func() error {
			res, err := fn(ctx)
			if err != nil {
				if !retryable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			out = res
			return nil
		}
		notify := func(err error, wait time.Duration) {
			metrics.EffectRetries.WithLabelValues(name).Inc()
			e.logger.Warn("effect failed, retrying",
				zap.String("effect", name),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
		}

		if err := backoff.RetryNotify(op, e.newBackOff(ctx), notify); err != nil {
			return nil, err
		}
		e.cache.Add(key, out)
		return out, nil
	})
	return v, err
}

// Len returns the number of memoized results.
func (e *Effects) Len() int {
	return e.cache.Len()
}

func (e *Effects) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialInterval
	b.MaxElapsedTime = e.cfg.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(b, e.cfg.MaxRetries), ctx)
}

func effectKey(name string, input any) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("effect %s: failed to encode input: %w", name, err)
	}
	return name + ":" + string(data), nil
}

func retryable(err error) bool {
	return !errors.Is(err, scan.ErrProtocolViolation) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
