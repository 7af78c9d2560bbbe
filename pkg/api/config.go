package api

import (
	"fmt"
	"time"

	"github.com/0xmhha/creation-indexer/internal/constants"
)

// Config holds API server configuration
type Config struct {
	Host string
	Port int

	EnableGraphQL   bool
	EnableWebSocket bool
	GraphQLPath     string
	WebSocketPath   string

	EnableRateLimit    bool
	RateLimitPerSecond float64
	RateLimitBurst     int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// DefaultConfig returns a config with every endpoint enabled
func DefaultConfig() *Config {
	return &Config{
		Host:               constants.DefaultAPIHost,
		Port:               constants.DefaultAPIPort,
		EnableGraphQL:      true,
		EnableWebSocket:    true,
		GraphQLPath:        constants.DefaultGraphQLPath,
		WebSocketPath:      constants.DefaultWebSocketPath,
		EnableRateLimit:    true,
		RateLimitPerSecond: constants.DefaultRateLimitPerSecond,
		RateLimitBurst:     constants.DefaultRateLimitBurst,
		ReadTimeout:        constants.DefaultReadTimeout,
		WriteTimeout:       constants.DefaultWriteTimeout,
		IdleTimeout:        constants.DefaultIdleTimeout,
		ShutdownTimeout:    constants.DefaultShutdownTimeout,
		MaxHeaderBytes:     constants.DefaultMaxHeaderBytes,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port < constants.MinPort || c.Port > constants.MaxPort {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.EnableGraphQL && c.GraphQLPath == "" {
		return fmt.Errorf("graphql path is required")
	}
	if c.EnableWebSocket && c.WebSocketPath == "" {
		return fmt.Errorf("websocket path is required")
	}
	if c.EnableRateLimit && (c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Address returns host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
