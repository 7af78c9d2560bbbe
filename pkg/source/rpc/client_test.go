package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// fakeCaller answers calls with canned JSON, decoded the way the real client would
type fakeCaller struct {
	responses map[string]string
	blocks    map[uint64]string
	calls     []string
	args      [][]interface{}
	batchErr  error
	closed    bool
}

func (f *fakeCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.calls = append(f.calls, method)
	f.args = append(f.args, args)
	raw, ok := f.responses[method]
	if !ok {
		return fmt.Errorf("method %s not found", method)
	}
	return json.Unmarshal([]byte(raw), result)
}

func (f *fakeCaller) BatchCallContext(ctx context.Context, b []gethrpc.BatchElem) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	for i := range b {
		n := uint64(b[i].Args[0].(hexutil.Uint64))
		raw, ok := f.blocks[n]
		if !ok {
			raw = "null"
		}
		if err := json.Unmarshal([]byte(raw), b[i].Result); err != nil {
			b[i].Error = err
		}
	}
	return nil
}

func (f *fakeCaller) Close() { f.closed = true }

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)
	_, err = NewClient(&Config{})
	assert.Error(t, err)
}

func TestClient_Height(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"eth_blockNumber": `"0x4b0"`}}
	c := newClient(f, &Config{})

	h, err := c.Height(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), h)

	c.Close()
	assert.True(t, f.closed)
}

func TestClient_Get_CreateTraces(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{
		"trace_filter": `[
			{"type": "call", "blockNumber": 10, "result": {}},
			{"type": "create", "blockNumber": 12, "result": {"address": "0x00000000000000000000000000000000000000aa"}},
			{"type": "create", "blockNumber": 13, "result": null}
		]`,
	}}
	c := newClient(f, &Config{PageBlocks: 50})

	page, err := c.Get(context.Background(), scan.CreationQuery().WithRange(10, 1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), page.NextCursor, "page is capped at PageBlocks")

	require.Len(t, f.args, 1)
	filter := f.args[0][0].(traceFilter)
	assert.Equal(t, hexutil.Uint64(10), filter.FromBlock)
	assert.Equal(t, hexutil.Uint64(59), filter.ToBlock, "trace_filter bounds are inclusive")

	require.Len(t, page.Records, 2)
	assert.Equal(t, []scan.Discovery{
		{ID: "0x00000000000000000000000000000000000000aa", BlockNumber: 12},
	}, scan.Extract(page))
}

func TestClient_Get_BlockHeaders(t *testing.T) {
	f := &fakeCaller{blocks: map[uint64]string{
		100: `{"number": "0x64", "timestamp": "0x3e8"}`,
		101: `{"number": "0x65", "timestamp": "0x3f2"}`,
	}}
	c := newClient(f, &Config{})

	page, err := c.Get(context.Background(), scan.BlockListingQuery().WithRange(100, 103))
	require.NoError(t, err)
	assert.Equal(t, uint64(103), page.NextCursor)
	assert.Empty(t, f.calls, "block listing does not filter traces")

	require.Len(t, page.Blocks, 2, "unknown blocks are skipped")
	assert.Equal(t, uint64(100), *page.Blocks[0].Number)
	assert.Equal(t, uint64(1010), *page.Blocks[1].Timestamp)
}

func TestClient_Get_BatchError(t *testing.T) {
	boom := errors.New("node down")
	c := newClient(&fakeCaller{batchErr: boom}, &Config{})

	_, err := c.Get(context.Background(), scan.BlockListingQuery().WithRange(1, 3))
	assert.ErrorIs(t, err, boom)
}

func TestClient_Get_EmptyRange(t *testing.T) {
	c := newClient(&fakeCaller{}, &Config{})
	_, err := c.Get(context.Background(), scan.CreationQuery().WithRange(5, 5))
	assert.Error(t, err)
}
