package eventbus

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/config"
	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// messageWriter is the part of *kafka.Writer the sink uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes discoveries to a Kafka topic keyed by chain and address.
type KafkaSink struct {
	writer messageWriter
	config config.KafkaSinkConfig
	nodeID string
	logger *zap.Logger

	mu        sync.Mutex
	connected atomic.Bool

	stats struct {
		messagesWritten atomic.Uint64
		bytesWritten    atomic.Uint64
		errors          atomic.Uint64
	}
}

// NewKafkaSink creates a new Kafka sink
func NewKafkaSink(cfg config.KafkaSinkConfig, nodeID string, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no Kafka brokers configured", ErrInvalidConfiguration)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: no Kafka topic configured", ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KafkaSink{
		config: cfg,
		nodeID: nodeID,
		logger: logger.Named("kafka-sink"),
	}, nil
}

// Connect creates the Kafka writer
func (k *KafkaSink) Connect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.connected.Load() {
		return ErrAlreadyConnected
	}

	transport, err := buildKafkaTransport(k.config)
	if err != nil {
		return err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(k.config.Brokers...),
		Topic:        k.config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    k.config.BatchSize,
		BatchTimeout: time.Duration(k.config.LingerMs) * time.Millisecond,
		RequiredAcks: requiredAcks(k.config.RequiredAcks),
		Compression:  compression(k.config.Compression),
	}
	if transport != nil {
		w.Transport = transport
	}

	k.writer = w
	k.connected.Store(true)

	k.logger.Info("connected to Kafka",
		zap.Strings("brokers", k.config.Brokers),
		zap.String("topic", k.config.Topic),
		zap.String("compression", k.config.Compression),
	)
	return nil
}

// Upsert writes d to the topic. The message key is PartitionKey(d).
func (k *KafkaSink) Upsert(ctx context.Context, d *types.EnrichedDiscovery) error {
	if !k.connected.Load() {
		return ErrNotConnected
	}

	env := NewEnvelope(k.nodeID, d)
	data, err := env.Encode()
	if err != nil {
		k.stats.errors.Add(1)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(PartitionKey(d)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(env.ID)},
			{Key: "event_type", Value: []byte(env.Type)},
			{Key: "node_id", Value: []byte(k.nodeID)},
			{Key: "timestamp", Value: []byte(env.Timestamp.Format(time.RFC3339Nano))},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.stats.errors.Add(1)
		metrics.SinkPublished.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("failed to write to Kafka: %w", err)
	}

	k.stats.messagesWritten.Add(1)
	k.stats.bytesWritten.Add(uint64(len(data)))
	metrics.SinkPublished.WithLabelValues("kafka", "success").Inc()
	return nil
}

// Stats returns (messages written, bytes written, errors)
func (k *KafkaSink) Stats() (uint64, uint64, uint64) {
	return k.stats.messagesWritten.Load(), k.stats.bytesWritten.Load(), k.stats.errors.Load()
}

// Close flushes pending messages and closes the writer
func (k *KafkaSink) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.connected.Swap(false) {
		return nil
	}
	if err := k.writer.Close(); err != nil {
		k.logger.Error("error closing Kafka writer", zap.Error(err))
		return err
	}
	k.logger.Info("disconnected from Kafka")
	return nil
}

func requiredAcks(n int) kafka.RequiredAcks {
	switch n {
	case 0:
		return kafka.RequireNone
	case 1:
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func compression(name string) kafka.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return 0
	}
}

// createKafkaSASLMechanism creates the appropriate SASL mechanism from config
func createKafkaSASLMechanism(cfg config.KafkaSinkConfig) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.SASLUsername,
			Password: cfg.SASLPassword,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return nil, fmt.Errorf("%w: unsupported SASL mechanism: %s", ErrInvalidConfiguration, cfg.SASLMechanism)
	}
}

// buildKafkaTransport creates a transport with SASL/TLS, or nil when neither is configured
func buildKafkaTransport(cfg config.KafkaSinkConfig) (*kafka.Transport, error) {
	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			ServerName:         cfg.TLS.ServerName,
		}
	}

	var mechanism sasl.Mechanism
	if cfg.SASLUsername != "" && cfg.SASLPassword != "" {
		m, err := createKafkaSASLMechanism(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
		mechanism = m
	}

	if tlsConfig == nil && mechanism == nil {
		return nil, nil
	}
	return &kafka.Transport{SASL: mechanism, TLS: tlsConfig}, nil
}
