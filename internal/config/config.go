package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/creation-indexer/internal/constants"
	"github.com/0xmhha/creation-indexer/pkg/multichain"
	"github.com/0xmhha/creation-indexer/pkg/source"
)

// Config holds all configuration for the indexer
type Config struct {
	Source    string                   `yaml:"source"`
	HyperSync HyperSyncConfig          `yaml:"hypersync"`
	RPC       RPCConfig                `yaml:"rpc"`
	Database  DatabaseConfig           `yaml:"database"`
	Log       LogConfig                `yaml:"log"`
	Indexer   IndexerConfig            `yaml:"indexer"`
	Chains    []multichain.ChainConfig `yaml:"chains"`
	API       APIConfig                `yaml:"api"`
	Sinks     SinksConfig              `yaml:"sinks"`
	Node      NodeConfig               `yaml:"node"`
}

// HyperSyncConfig holds HyperSync client configuration
type HyperSyncConfig struct {
	// URL overrides the per-chain default endpoint. It may contain a single
	// %d verb which is replaced by the chain ID.
	URL       string        `yaml:"url"`
	APIToken  string        `yaml:"api_token,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

// RPCConfig holds JSON-RPC source configuration
type RPCConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	PageBlocks uint64        `yaml:"page_blocks"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"readonly"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IndexerConfig holds indexer-specific configuration
type IndexerConfig struct {
	// Workers bounds concurrent historical windows per chain
	Workers int `yaml:"workers"`
	// EffectRetries is the number of retries for a failed effect call
	EffectRetries uint64 `yaml:"effect_retries"`
	// EffectCacheSize is the number of memoized effect results kept
	EffectCacheSize int `yaml:"effect_cache_size"`
	// EffectRetryDelay is the initial backoff between effect attempts
	EffectRetryDelay time.Duration `yaml:"effect_retry_delay"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	EnableGraphQL   bool          `yaml:"enable_graphql"`
	EnableWebSocket bool          `yaml:"enable_websocket"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

// SinksConfig holds the external sinks discoveries are streamed to
type SinksConfig struct {
	Kafka KafkaSinkConfig `yaml:"kafka"`
	Redis RedisSinkConfig `yaml:"redis"`
}

// KafkaSinkConfig holds Kafka sink configuration
type KafkaSinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// SASLMechanism is the SASL mechanism: "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"
	SASLMechanism string `yaml:"sasl_mechanism"`
	SASLUsername  string `yaml:"sasl_username,omitempty"`
	SASLPassword  string `yaml:"sasl_password,omitempty"`
	BatchSize     int    `yaml:"batch_size"`
	LingerMs      int    `yaml:"linger_ms"`
	// Compression is the compression type: "none", "gzip", "snappy", "lz4", "zstd"
	Compression string `yaml:"compression"`
	// RequiredAcks is the number of acknowledgments required: 0, 1, -1 (all)
	RequiredAcks int       `yaml:"required_acks"`
	TLS          TLSConfig `yaml:"tls"`
}

// RedisSinkConfig holds Redis Pub/Sub sink configuration
type RedisSinkConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addresses is the list of Redis server addresses (supports cluster mode)
	Addresses    []string      `yaml:"addresses"`
	Password     string        `yaml:"password,omitempty"`
	DB           int           `yaml:"db"`
	Channel      string        `yaml:"channel"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ClusterMode  bool          `yaml:"cluster_mode"`
	TLS          TLSConfig     `yaml:"tls"`
}

// TLSConfig holds TLS configuration for secure connections
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	ServerName         string `yaml:"server_name,omitempty"`
}

// NodeConfig identifies this process in published envelopes
type NodeConfig struct {
	ID string `yaml:"id"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Source == "" {
		c.Source = string(source.KindHyperSync)
	}

	// HyperSync defaults
	if c.HyperSync.Timeout == 0 {
		c.HyperSync.Timeout = constants.DefaultSourceTimeout
	}

	// RPC defaults
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultSourceTimeout
	}
	if c.RPC.PageBlocks == 0 {
		c.RPC.PageBlocks = constants.DefaultRPCPageBlocks
	}

	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	// Indexer defaults
	if c.Indexer.Workers == 0 {
		c.Indexer.Workers = constants.DefaultWorkers
	}
	if c.Indexer.EffectRetries == 0 {
		c.Indexer.EffectRetries = constants.DefaultEffectMaxRetries
	}
	if c.Indexer.EffectCacheSize == 0 {
		c.Indexer.EffectCacheSize = constants.DefaultEffectCacheSize
	}
	if c.Indexer.EffectRetryDelay == 0 {
		c.Indexer.EffectRetryDelay = constants.DefaultEffectRetryDelay
	}

	// Chains inherit the global worker count unless they set their own
	for i := range c.Chains {
		if c.Chains[i].Workers == 0 {
			c.Chains[i].Workers = c.Indexer.Workers
		}
	}

	// API defaults
	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = constants.DefaultRateLimitPerSecond
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = constants.DefaultRateLimitBurst
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = constants.DefaultWriteTimeout
	}

	// Sink defaults
	if c.Sinks.Kafka.Topic == "" {
		c.Sinks.Kafka.Topic = constants.DefaultKafkaTopic
	}
	if c.Sinks.Kafka.BatchSize == 0 {
		c.Sinks.Kafka.BatchSize = 100
	}
	if c.Sinks.Kafka.LingerMs == 0 {
		c.Sinks.Kafka.LingerMs = 10
	}
	if c.Sinks.Kafka.RequiredAcks == 0 {
		c.Sinks.Kafka.RequiredAcks = -1
	}
	if c.Sinks.Redis.Channel == "" {
		c.Sinks.Redis.Channel = constants.DefaultRedisChannel
	}
	if c.Sinks.Redis.PoolSize == 0 {
		c.Sinks.Redis.PoolSize = 10
	}
	if c.Sinks.Redis.DialTimeout == 0 {
		c.Sinks.Redis.DialTimeout = 5 * time.Second
	}
	if c.Sinks.Redis.ReadTimeout == 0 {
		c.Sinks.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Sinks.Redis.WriteTimeout == 0 {
		c.Sinks.Redis.WriteTimeout = 3 * time.Second
	}

	// Node defaults
	if c.Node.ID == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Node.ID = hostname
		} else {
			c.Node.ID = "node-1"
		}
	}
}

// LoadFromEnv loads configuration from environment variables
// Environment variables take precedence over file configuration
func (c *Config) LoadFromEnv() error {
	if kind := os.Getenv("INDEXER_SOURCE"); kind != "" {
		c.Source = kind
	}

	// HyperSync configuration
	if url := os.Getenv("INDEXER_HYPERSYNC_URL"); url != "" {
		c.HyperSync.URL = url
	}
	if token := os.Getenv("INDEXER_HYPERSYNC_API_TOKEN"); token != "" {
		c.HyperSync.APIToken = token
	}
	if timeout := os.Getenv("INDEXER_HYPERSYNC_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_HYPERSYNC_TIMEOUT: %w", err)
		}
		c.HyperSync.Timeout = duration
	}
	if limit := os.Getenv("INDEXER_HYPERSYNC_RATE_LIMIT"); limit != "" {
		val, err := strconv.ParseFloat(limit, 64)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_HYPERSYNC_RATE_LIMIT: %w", err)
		}
		c.HyperSync.RateLimit = val
	}

	// RPC configuration
	if endpoint := os.Getenv("INDEXER_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("INDEXER_RPC_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = duration
	}

	// Database configuration
	if path := os.Getenv("INDEXER_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if readonly := os.Getenv("INDEXER_DB_READONLY"); readonly != "" {
		val, err := strconv.ParseBool(readonly)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_DB_READONLY: %w", err)
		}
		c.Database.ReadOnly = val
	}

	// Log configuration
	if level := os.Getenv("INDEXER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("INDEXER_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	// Indexer configuration
	if workers := os.Getenv("INDEXER_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_WORKERS: %w", err)
		}
		c.Indexer.Workers = val
	}
	if retries := os.Getenv("INDEXER_EFFECT_RETRIES"); retries != "" {
		val, err := strconv.ParseUint(retries, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_EFFECT_RETRIES: %w", err)
		}
		c.Indexer.EffectRetries = val
	}

	// API configuration
	if enabled := os.Getenv("INDEXER_API_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_API_ENABLED: %w", err)
		}
		c.API.Enabled = val
	}
	if host := os.Getenv("INDEXER_API_HOST"); host != "" {
		c.API.Host = host
	}
	if port := os.Getenv("INDEXER_API_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_API_PORT: %w", err)
		}
		c.API.Port = val
	}
	if enableGraphQL := os.Getenv("INDEXER_API_GRAPHQL"); enableGraphQL != "" {
		val, err := strconv.ParseBool(enableGraphQL)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_API_GRAPHQL: %w", err)
		}
		c.API.EnableGraphQL = val
	}
	if enableWS := os.Getenv("INDEXER_API_WEBSOCKET"); enableWS != "" {
		val, err := strconv.ParseBool(enableWS)
		if err != nil {
			return fmt.Errorf("invalid INDEXER_API_WEBSOCKET: %w", err)
		}
		c.API.EnableWebSocket = val
	}

	// Sink configuration
	if brokers := os.Getenv("INDEXER_KAFKA_BROKERS"); brokers != "" {
		c.Sinks.Kafka.Brokers = splitList(brokers)
		c.Sinks.Kafka.Enabled = true
	}
	if topic := os.Getenv("INDEXER_KAFKA_TOPIC"); topic != "" {
		c.Sinks.Kafka.Topic = topic
	}
	if addrs := os.Getenv("INDEXER_REDIS_ADDRESSES"); addrs != "" {
		c.Sinks.Redis.Addresses = splitList(addrs)
		c.Sinks.Redis.Enabled = true
	}
	if password := os.Getenv("INDEXER_REDIS_PASSWORD"); password != "" {
		c.Sinks.Redis.Password = password
	}
	if channel := os.Getenv("INDEXER_REDIS_CHANNEL"); channel != "" {
		c.Sinks.Redis.Channel = channel
	}

	if nodeID := os.Getenv("INDEXER_NODE_ID"); nodeID != "" {
		c.Node.ID = nodeID
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch source.Kind(c.Source) {
	case source.KindHyperSync:
		if c.HyperSync.Timeout < 0 {
			return fmt.Errorf("hypersync timeout cannot be negative")
		}
		if c.HyperSync.RateLimit < 0 {
			return fmt.Errorf("hypersync rate limit cannot be negative")
		}
	case source.KindRPC:
		if c.RPC.Endpoint == "" && !chainsHaveURL(c.Chains) {
			return fmt.Errorf("RPC endpoint is required")
		}
		if c.RPC.Timeout <= 0 {
			return fmt.Errorf("RPC timeout must be positive")
		}
	default:
		return fmt.Errorf("invalid source %q, must be one of: hypersync, rpc", c.Source)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.Indexer.Workers < constants.MinWorkers || c.Indexer.Workers > constants.MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d", constants.MinWorkers, constants.MaxWorkers)
	}

	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	if err := multichain.ValidateChains(c.Chains); err != nil {
		return fmt.Errorf("invalid chains: %w", err)
	}

	if c.API.Enabled && (c.API.Port < constants.MinPort || c.API.Port > constants.MaxPort) {
		return fmt.Errorf("invalid API port %d", c.API.Port)
	}

	if c.Sinks.Kafka.Enabled {
		if len(c.Sinks.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka sink enabled but no brokers configured")
		}
		if c.Sinks.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}
	if c.Sinks.Redis.Enabled {
		if len(c.Sinks.Redis.Addresses) == 0 {
			return fmt.Errorf("redis sink enabled but no addresses configured")
		}
		if c.Sinks.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis pool size must be positive")
		}
	}

	return nil
}

func chainsHaveURL(chains []multichain.ChainConfig) bool {
	if len(chains) == 0 {
		return false
	}
	for _, ch := range chains {
		if ch.SourceURL == "" {
			return false
		}
	}
	return true
}

// HyperSyncURL returns the HyperSync endpoint for chainID.
func (c *Config) HyperSyncURL(chainID uint64) string {
	if c.HyperSync.URL == "" {
		return constants.DefaultHyperSyncURL(chainID)
	}
	if strings.Contains(c.HyperSync.URL, "%d") {
		return fmt.Sprintf(c.HyperSync.URL, chainID)
	}
	return c.HyperSync.URL
}

// Load is a convenience method that loads configuration in the following order:
// 1. Load from file (if provided)
// 2. Load from environment variables (override file)
// 3. Set defaults for anything still missing
// 4. Validate
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
