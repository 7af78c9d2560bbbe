package eventbus

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/config"
	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// publisher is the part of redis.UniversalClient the sink uses
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisSink publishes discoveries on a Redis Pub/Sub channel.
type RedisSink struct {
	client  publisher
	config  config.RedisSinkConfig
	nodeID  string
	logger  *zap.Logger
	mu      sync.Mutex
	running atomic.Bool
}

// NewRedisSink creates a new Redis sink
func NewRedisSink(cfg config.RedisSinkConfig, nodeID string, logger *zap.Logger) (*RedisSink, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("%w: no Redis addresses configured", ErrInvalidConfiguration)
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("%w: no Redis channel configured", ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		config: cfg,
		nodeID: nodeID,
		logger: logger.Named("redis-sink"),
	}, nil
}

// Connect dials Redis and checks the connection with PING
func (r *RedisSink) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return ErrAlreadyConnected
	}

	var tlsConfig *tls.Config
	if r.config.TLS.Enabled {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: r.config.TLS.InsecureSkipVerify,
			ServerName:         r.config.TLS.ServerName,
		}
	}

	var client publisher
	if r.config.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        r.config.Addresses,
			Password:     r.config.Password,
			PoolSize:     r.config.PoolSize,
			DialTimeout:  r.config.DialTimeout,
			ReadTimeout:  r.config.ReadTimeout,
			WriteTimeout: r.config.WriteTimeout,
			TLSConfig:    tlsConfig,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         r.config.Addresses[0],
			Password:     r.config.Password,
			DB:           r.config.DB,
			PoolSize:     r.config.PoolSize,
			DialTimeout:  r.config.DialTimeout,
			ReadTimeout:  r.config.ReadTimeout,
			WriteTimeout: r.config.WriteTimeout,
			TLSConfig:    tlsConfig,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.client = client
	r.running.Store(true)
	r.logger.Info("connected to Redis",
		zap.Strings("addresses", r.config.Addresses),
		zap.Bool("cluster", r.config.ClusterMode),
		zap.String("channel", r.config.Channel),
	)
	return nil
}

// Upsert publishes the envelope of d on the configured channel.
func (r *RedisSink) Upsert(ctx context.Context, d *types.EnrichedDiscovery) error {
	if !r.running.Load() {
		return ErrNotConnected
	}

	data, err := NewEnvelope(r.nodeID, d).Encode()
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, r.config.Channel, data).Err(); err != nil {
		metrics.SinkPublished.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	metrics.SinkPublished.WithLabelValues("redis", "success").Inc()
	return nil
}

// Close closes the Redis client
func (r *RedisSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Swap(false) {
		return nil
	}
	return r.client.Close()
}
