package graphql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/testutil"
	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store := testutil.NewTestStorage(t)
	ctx := context.Background()

	for _, c := range []*types.EnrichedDiscovery{
		{ID: "0xaaaa000000000000000000000000000000000001", ChainID: "ethereum", BlockNumber: 100, BlockTime: 1438270000},
		{ID: "0xaaaa000000000000000000000000000000000002", ChainID: "ethereum", BlockNumber: 105, BlockTime: 1438270075},
		{ID: "0xaaaa000000000000000000000000000000000003", ChainID: "ethereum", BlockNumber: 250, BlockTime: 1438272000},
	} {
		require.NoError(t, store.SetContract(ctx, c))
	}
	require.NoError(t, store.AddCoverage(ctx, "ethereum", scan.BlockRange{From: 1, To: 201}))
	require.NoError(t, store.SetGaps(ctx, "ethereum", []scan.BlockRange{{From: 1001, To: 1200}}))
	require.NoError(t, store.SetHead(ctx, "ethereum", 1450))

	h, err := NewHandler(store, zap.NewNop())
	require.NoError(t, err)
	return h
}

func TestQueryContract(t *testing.T) {
	h := newTestHandler(t)

	result := h.ExecuteQuery(context.Background(), `{
		contract(chainId: "ethereum", id: "0xaaaa000000000000000000000000000000000002") {
			id blockNumber blockTime timestamp
		}
	}`, nil)
	require.Empty(t, result.Errors)

	data := result.Data.(map[string]interface{})
	contract := data["contract"].(map[string]interface{})
	assert.Equal(t, "105", contract["blockNumber"])
	assert.Equal(t, "1438270075", contract["blockTime"])
	assert.Equal(t, "2015-07-30T15:27:55Z", contract["timestamp"])
}

func TestQueryContractMissing(t *testing.T) {
	h := newTestHandler(t)

	result := h.ExecuteQuery(context.Background(), `{ contract(chainId: "ethereum", id: "0xdead") { id } }`, nil)
	require.Empty(t, result.Errors)
	assert.Nil(t, result.Data.(map[string]interface{})["contract"])
}

func TestQueryContractsByBlockRange(t *testing.T) {
	h := newTestHandler(t)

	result := h.ExecuteQuery(context.Background(), `query($from: BigInt!, $to: BigInt!) {
		contractsByBlockRange(chainId: "ethereum", from: $from, to: $to) { id blockNumber }
	}`, map[string]interface{}{"from": "100", "to": "250"})
	require.Empty(t, result.Errors)

	list := result.Data.(map[string]interface{})["contractsByBlockRange"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "100", list[0].(map[string]interface{})["blockNumber"])
	assert.Equal(t, "105", list[1].(map[string]interface{})["blockNumber"])
}

func TestQueryContractsByBlockRangeLimit(t *testing.T) {
	h := newTestHandler(t)

	result := h.ExecuteQuery(context.Background(), `{
		contractsByBlockRange(chainId: "ethereum", from: "0", to: "1000", limit: 1) { id }
	}`, nil)
	require.Empty(t, result.Errors)
	assert.Len(t, result.Data.(map[string]interface{})["contractsByBlockRange"], 1)
}

func TestQueryCoverageGapsHead(t *testing.T) {
	h := newTestHandler(t)

	result := h.ExecuteQuery(context.Background(), `{
		coverage(chainId: "ethereum") { from to }
		gaps(chainId: "ethereum") { from to }
		head(chainId: "ethereum")
		other: head(chainId: "base")
	}`, nil)
	require.Empty(t, result.Errors)

	data := result.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{map[string]interface{}{"from": "1", "to": "201"}}, data["coverage"])
	assert.Equal(t, []interface{}{map[string]interface{}{"from": "1001", "to": "1200"}}, data["gaps"])
	assert.Equal(t, "1450", data["head"])
	assert.Nil(t, data["other"])
}

func TestQueryInvalidBigInt(t *testing.T) {
	h := newTestHandler(t)

	result := h.ExecuteQuery(context.Background(), `{
		contractsByBlockRange(chainId: "ethereum", from: "abc", to: "10") { id }
	}`, nil)
	assert.NotEmpty(t, result.Errors)
}
