package constants

import (
	"fmt"
	"time"
)

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "localhost"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 8080

	// MinPort is the minimum valid port number
	MinPort = 1

	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum request header size (1 MB)
	DefaultMaxHeaderBytes = 1 << 20

	// DefaultRateLimitPerSecond is the default rate limit (requests per second)
	DefaultRateLimitPerSecond = 100

	// DefaultRateLimitBurst is the default rate limit burst size
	DefaultRateLimitBurst = 200
)

// API Paths
const (
	// DefaultGraphQLPath is the default GraphQL endpoint path
	DefaultGraphQLPath = "/graphql"

	// DefaultWebSocketPath is the default WebSocket endpoint path
	DefaultWebSocketPath = "/ws"
)

// Range Driver Constants
const (
	// DefaultStartBlock is the first block scanned. Block 0 carries no creations.
	DefaultStartBlock = 1

	// DefaultInterval is the historical window size in blocks
	DefaultInterval = 200

	// DefaultReorgThreshold is how many blocks behind the head the safe block trails
	DefaultReorgThreshold = 200

	// DefaultWorkers is the default number of concurrent historical windows
	DefaultWorkers = 4

	// MinWorkers is the minimum number of workers
	MinWorkers = 1

	// MaxWorkers is the maximum number of workers
	MaxWorkers = 256

	// DefaultPollInterval is how often the live handler checks the head
	DefaultPollInterval = 2 * time.Second
)

// Effect Constants
const (
	// DefaultEffectCacheSize is the number of memoized effect results kept
	DefaultEffectCacheSize = 4096

	// DefaultEffectMaxRetries is the number of retries after a failed effect call
	DefaultEffectMaxRetries = 3

	// DefaultEffectRetryDelay is the first backoff delay of an effect retry
	DefaultEffectRetryDelay = 500 * time.Millisecond

	// DefaultEffectMaxElapsed caps the time spent retrying one effect call
	DefaultEffectMaxElapsed = 2 * time.Minute
)

// Source Constants
const (
	// DefaultSourceTimeout is the default timeout of one source request
	DefaultSourceTimeout = 60 * time.Second

	// DefaultRPCPageBlocks is the number of blocks one JSON-RPC page covers
	DefaultRPCPageBlocks = 100

	// hyperSyncURLFormat is the public HyperSync traces endpoint for a chain id
	hyperSyncURLFormat = "https://%d-traces.hypersync.xyz"
)

// DefaultHyperSyncURL returns the public HyperSync traces endpoint for chainID.
func DefaultHyperSyncURL(chainID uint64) string {
	return fmt.Sprintf(hyperSyncURLFormat, chainID)
}

// Storage Constants
const (
	// DefaultDatabasePath is the default PebbleDB directory
	DefaultDatabasePath = "./data"

	// DefaultCacheSize is the default cache size in MB for PebbleDB
	DefaultCacheSize = 64

	// DefaultMaxOpenFiles is the default maximum number of open files for PebbleDB
	DefaultMaxOpenFiles = 1000

	// DefaultWriteBuffer is the default write buffer size in MB for PebbleDB
	DefaultWriteBuffer = 32
)

// Pagination Constants
const (
	// DefaultPaginationLimit is the default pagination limit
	DefaultPaginationLimit = 100

	// DefaultMaxPaginationLimit is the maximum pagination limit
	DefaultMaxPaginationLimit = 1000
)

// WebSocket Constants
const (
	// DefaultWSReadBufferSize is the default WebSocket read buffer size
	DefaultWSReadBufferSize = 1024

	// DefaultWSWriteBufferSize is the default WebSocket write buffer size
	DefaultWSWriteBufferSize = 1024

	// DefaultWSPingInterval is the default WebSocket ping interval
	DefaultWSPingInterval = 30 * time.Second

	// DefaultWSPongTimeout is the default WebSocket pong timeout
	DefaultWSPongTimeout = 60 * time.Second

	// DefaultWSWriteTimeout is the default WebSocket write timeout
	DefaultWSWriteTimeout = 10 * time.Second

	// DefaultWSClientBuffer is the number of queued messages per client
	DefaultWSClientBuffer = 256
)

// Sink Constants
const (
	// DefaultKafkaTopic is the default topic discoveries are written to
	DefaultKafkaTopic = "contract-creations"

	// DefaultRedisChannel is the default pub/sub channel discoveries are published to
	DefaultRedisChannel = "contract-creations"

	// DefaultSinkTimeout bounds one sink write
	DefaultSinkTimeout = 10 * time.Second
)
