// Package hypersync is a Source backed by the HyperSync HTTP query API.
package hypersync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/scan"
)

const (
	queryPath  = "/query"
	heightPath = "/height"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

var (
	// ErrEmptyURL is returned when the client is configured without a URL.
	ErrEmptyURL = errors.New("hypersync url cannot be empty")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hypersync returned status %d: %s", e.Code, e.Body)
}

// Config holds client configuration
type Config struct {
	// URL is the HyperSync endpoint, e.g. https://1-traces.hypersync.xyz
	URL string

	// APIToken is sent as a bearer token when set
	APIToken string

	// Timeout bounds a single HTTP request. Zero means no timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64

	// Burst is the limiter burst size (default: 1)
	Burst int

	// HTTPClient overrides the default client
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Client queries a HyperSync endpoint.
type Client struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new HyperSync client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		url:     strings.TrimRight(cfg.URL, "/"),
		token:   cfg.APIToken,
		http:    httpClient,
		limiter: limiter,
		logger:  logger.Named("hypersync"),
	}, nil
}

// Get runs one query for [q.FromBlock, q.ToBlock) and returns the page along
// with the cursor to resume from.
func (c *Client) Get(ctx context.Context, q scan.Query) (*scan.Page, error) {
	req := queryRequest{
		FromBlock:        q.FromBlock,
		Traces:           q.Traces,
		IncludeAllBlocks: q.IncludeAllBlocks,
		FieldSelection:   q.Fields,
	}
	if q.ToBlock > 0 {
		to := q.ToBlock
		req.ToBlock = &to
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, queryPath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to query blocks [%d,%d): %w", q.FromBlock, q.ToBlock, err)
	}
	return resp.toPage(), nil
}

// Height returns the archive height.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	var resp heightResponse
	if err := c.do(ctx, http.MethodGet, heightPath, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get height: %w", err)
	}
	return uint64(resp.Height), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.SourceLatency.WithLabelValues("hypersync").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequests.WithLabelValues("hypersync", "error").Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.SourceRequests.WithLabelValues("hypersync", "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.SourceRequests.WithLabelValues("hypersync", "error").Inc()
		return fmt.Errorf("failed to decode response: %w", err)
	}
	metrics.SourceRequests.WithLabelValues("hypersync", "ok").Inc()

	c.logger.Debug("request completed",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
