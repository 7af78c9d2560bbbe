// Package rpc is a Source backed by an Ethereum JSON-RPC node exposing the
// trace_filter method. Each page covers at most PageBlocks blocks.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/metrics"
	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// DefaultPageBlocks is the page width used when none is configured.
const DefaultPageBlocks = 100

// Config holds client configuration
type Config struct {
	Endpoint string
	Timeout  time.Duration

	// PageBlocks caps the blocks covered by one Get call (default: 100)
	PageBlocks uint64

	Logger *zap.Logger
}

// rpcCaller is the subset of *rpc.Client the source uses.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	BatchCallContext(ctx context.Context, b []gethrpc.BatchElem) error
	Close()
}

// Client wraps an Ethereum JSON-RPC connection.
type Client struct {
	ethClient  *ethclient.Client
	rpcClient  rpcCaller
	endpoint   string
	pageBlocks uint64
	logger     *zap.Logger
}

// NewClient dials the endpoint and verifies the connection.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	rpcClient, err := gethrpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c := newClient(rpcClient, cfg)
	c.ethClient = ethclient.NewClient(rpcClient)

	if _, err := c.ethClient.ChainID(ctx); err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to ping RPC endpoint: %w", err)
	}

	c.logger.Info("connected to Ethereum RPC", zap.String("endpoint", cfg.Endpoint))
	return c, nil
}

func newClient(caller rpcCaller, cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageBlocks := cfg.PageBlocks
	if pageBlocks == 0 {
		pageBlocks = DefaultPageBlocks
	}
	return &Client{
		rpcClient:  caller,
		endpoint:   cfg.Endpoint,
		pageBlocks: pageBlocks,
		logger:     logger.Named("rpc"),
	}
}

// Close closes the client connection
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Height returns the latest block number
func (c *Client) Height(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return uint64(n), nil
}

// Get serves one page of at most PageBlocks blocks starting at q.FromBlock.
// Create traces come from trace_filter; block rows from a batched
// eth_getBlockByNumber.
func (c *Client) Get(ctx context.Context, q scan.Query) (*scan.Page, error) {
	end := q.FromBlock + c.pageBlocks
	if q.ToBlock > 0 && q.ToBlock < end {
		end = q.ToBlock
	}
	if end <= q.FromBlock {
		return nil, fmt.Errorf("empty page range [%d,%d)", q.FromBlock, end)
	}

	page := &scan.Page{NextCursor: end}

	if len(q.Traces) > 0 {
		records, err := c.createTraces(ctx, q.FromBlock, end, traceTypes(q.Traces))
		if err != nil {
			return nil, err
		}
		page.Records = records
	}

	if q.IncludeAllBlocks || len(q.Fields.Block) > 0 {
		blocks, err := c.blockHeaders(ctx, q.FromBlock, end)
		if err != nil {
			return nil, err
		}
		page.Blocks = blocks
	}

	return page, nil
}

type traceFilter struct {
	FromBlock hexutil.Uint64 `json:"fromBlock"`
	ToBlock   hexutil.Uint64 `json:"toBlock"`
}

type traceEntry struct {
	Type        string       `json:"type"`
	BlockNumber *uint64      `json:"blockNumber"`
	Result      *traceResult `json:"result"`
}

type traceResult struct {
	Address *common.Address `json:"address"`
}

func (c *Client) createTraces(ctx context.Context, from, end uint64, types map[string]bool) ([]scan.RawRecord, error) {
	var entries []traceEntry
	filter := traceFilter{FromBlock: hexutil.Uint64(from), ToBlock: hexutil.Uint64(end - 1)}
	if err := c.call(ctx, &entries, "trace_filter", filter); err != nil {
		return nil, fmt.Errorf("failed to filter traces [%d,%d): %w", from, end, err)
	}

	records := make([]scan.RawRecord, 0, len(entries))
	for _, e := range entries {
		if len(types) > 0 && !types[e.Type] {
			continue
		}
		rec := scan.TraceRecord{BlockNumber: e.BlockNumber}
		if e.Result != nil && e.Result.Address != nil {
			addr := hexutil.Encode(e.Result.Address.Bytes())
			rec.Address = &addr
		}
		records = append(records, rec)
	}
	return records, nil
}

type headerFields struct {
	Number    *hexutil.Uint64 `json:"number"`
	Timestamp *hexutil.Uint64 `json:"timestamp"`
}

func (c *Client) blockHeaders(ctx context.Context, from, end uint64) ([]scan.BlockRecord, error) {
	headers := make([]*headerFields, end-from)
	batch := make([]gethrpc.BatchElem, end-from)
	for i := range batch {
		batch[i] = gethrpc.BatchElem{
			Method: "eth_getBlockByNumber",
			Args:   []interface{}{hexutil.Uint64(from + uint64(i)), false},
			Result: &headers[i],
		}
	}

	start := time.Now()
	err := c.rpcClient.BatchCallContext(ctx, batch)
	metrics.SourceLatency.WithLabelValues("rpc").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequests.WithLabelValues("rpc", "error").Inc()
		return nil, fmt.Errorf("batch call failed: %w", err)
	}

	blocks := make([]scan.BlockRecord, 0, len(headers))
	for i, elem := range batch {
		if elem.Error != nil {
			metrics.SourceRequests.WithLabelValues("rpc", "error").Inc()
			return nil, fmt.Errorf("failed to fetch block %d: %w", from+uint64(i), elem.Error)
		}
		h := headers[i]
		if h == nil {
			continue
		}
		blocks = append(blocks, scan.BlockRecord{
			Number:    (*uint64)(h.Number),
			Timestamp: (*uint64)(h.Timestamp),
		})
	}
	metrics.SourceRequests.WithLabelValues("rpc", "ok").Inc()
	return blocks, nil
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	err := c.rpcClient.CallContext(ctx, result, method, args...)
	metrics.SourceLatency.WithLabelValues("rpc").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequests.WithLabelValues("rpc", "error").Inc()
		return err
	}
	metrics.SourceRequests.WithLabelValues("rpc", "ok").Inc()
	return nil
}

func traceTypes(sel []scan.TraceSelection) map[string]bool {
	types := make(map[string]bool)
	for _, s := range sel {
		for _, t := range s.Type {
			types[t] = true
		}
	}
	return types
}
