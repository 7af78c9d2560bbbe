package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/config"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

func discovery() *types.EnrichedDiscovery {
	return &types.EnrichedDiscovery{
		ID:          "0x5a0b54d5dc17e0aadc383d2db43b0a0d3e029c4c",
		ChainID:     "1",
		BlockNumber: 46402,
		BlockTime:   1438918233,
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
	closed  bool
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	p.channel = channel
	p.payload = message.([]byte)
	cmd.SetVal(1)
	return cmd
}

func (p *fakePublisher) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope("node-1", discovery())
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, EventTypeContractCreated, env.Type)
	assert.Equal(t, "1", env.ChainID)

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, discovery(), decoded.Data)
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{"))
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = DecodeEnvelope([]byte(`{"id":"x"}`))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestNewKafkaSinkValidation(t *testing.T) {
	_, err := NewKafkaSink(config.KafkaSinkConfig{Topic: "t"}, "n", nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewKafkaSink(config.KafkaSinkConfig{Brokers: []string{"b:9092"}}, "n", nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestKafkaSinkUpsert(t *testing.T) {
	sink, err := NewKafkaSink(config.KafkaSinkConfig{Brokers: []string{"b:9092"}, Topic: "t"}, "node-1", zap.NewNop())
	require.NoError(t, err)

	require.ErrorIs(t, sink.Upsert(context.Background(), discovery()), ErrNotConnected)

	w := &fakeWriter{}
	sink.writer = w
	sink.connected.Store(true)

	require.NoError(t, sink.Upsert(context.Background(), discovery()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "1:0x5a0b54d5dc17e0aadc383d2db43b0a0d3e029c4c", string(msg.Key))

	env, err := DecodeEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(46402), env.Data.BlockNumber)

	headers := make(map[string]string)
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, env.ID, headers["event_id"])
	assert.Equal(t, EventTypeContractCreated, headers["event_type"])
	assert.Equal(t, "node-1", headers["node_id"])

	written, _, errs := sink.Stats()
	assert.Equal(t, uint64(1), written)
	assert.Zero(t, errs)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
	assert.NoError(t, sink.Close())
}

func TestKafkaSinkWriteError(t *testing.T) {
	sink, err := NewKafkaSink(config.KafkaSinkConfig{Brokers: []string{"b:9092"}, Topic: "t"}, "n", nil)
	require.NoError(t, err)

	broker := errors.New("leader not available")
	sink.writer = &fakeWriter{err: broker}
	sink.connected.Store(true)

	err = sink.Upsert(context.Background(), discovery())
	assert.ErrorIs(t, err, broker)

	_, _, errs := sink.Stats()
	assert.Equal(t, uint64(1), errs)
}

func TestKafkaConnectTwice(t *testing.T) {
	sink, err := NewKafkaSink(config.KafkaSinkConfig{Brokers: []string{"b:9092"}, Topic: "t"}, "n", nil)
	require.NoError(t, err)

	require.NoError(t, sink.Connect(context.Background()))
	assert.ErrorIs(t, sink.Connect(context.Background()), ErrAlreadyConnected)
	require.NoError(t, sink.Close())
}

func TestBuildKafkaTransport(t *testing.T) {
	tr, err := buildKafkaTransport(config.KafkaSinkConfig{})
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = buildKafkaTransport(config.KafkaSinkConfig{
		SASLMechanism: "SCRAM-SHA-512",
		SASLUsername:  "user",
		SASLPassword:  "pass",
		TLS:           config.TLSConfig{Enabled: true, ServerName: "kafka.internal"},
	})
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.NotNil(t, tr.SASL)
	assert.Equal(t, "kafka.internal", tr.TLS.ServerName)

	_, err = buildKafkaTransport(config.KafkaSinkConfig{
		SASLMechanism: "GSSAPI",
		SASLUsername:  "user",
		SASLPassword:  "pass",
	})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestKafkaOptions(t *testing.T) {
	assert.Equal(t, kafka.RequireNone, requiredAcks(0))
	assert.Equal(t, kafka.RequireOne, requiredAcks(1))
	assert.Equal(t, kafka.RequireAll, requiredAcks(-1))

	assert.Equal(t, kafka.Zstd, compression("zstd"))
	assert.Equal(t, kafka.Compression(0), compression("none"))
}

func TestNewRedisSinkValidation(t *testing.T) {
	_, err := NewRedisSink(config.RedisSinkConfig{Channel: "c"}, "n", nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewRedisSink(config.RedisSinkConfig{Addresses: []string{"r:6379"}}, "n", nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRedisSinkUpsert(t *testing.T) {
	sink, err := NewRedisSink(config.RedisSinkConfig{Addresses: []string{"r:6379"}, Channel: "creations"}, "node-1", nil)
	require.NoError(t, err)

	require.ErrorIs(t, sink.Upsert(context.Background(), discovery()), ErrNotConnected)

	p := &fakePublisher{}
	sink.client = p
	sink.running.Store(true)

	require.NoError(t, sink.Upsert(context.Background(), discovery()))
	assert.Equal(t, "creations", p.channel)

	env, err := DecodeEnvelope(p.payload)
	require.NoError(t, err)
	assert.Equal(t, "node-1", env.NodeID)
	assert.Equal(t, discovery(), env.Data)

	require.NoError(t, sink.Close())
	assert.True(t, p.closed)
}

func TestRedisSinkPublishError(t *testing.T) {
	sink, err := NewRedisSink(config.RedisSinkConfig{Addresses: []string{"r:6379"}, Channel: "c"}, "n", nil)
	require.NoError(t, err)

	down := errors.New("connection refused")
	sink.client = &fakePublisher{err: down}
	sink.running.Store(true)

	assert.ErrorIs(t, sink.Upsert(context.Background(), discovery()), down)
}
