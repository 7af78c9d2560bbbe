package multichain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/creation-indexer/internal/testutil"
)

func newRegistryChain(t *testing.T, id string) *Chain {
	t.Helper()
	chain, err := NewChain(testChainConfig(id), testutil.NewChainSource(10), newTestDeps(t, testutil.NewTestStorage(t)), nil)
	require.NoError(t, err)
	return chain
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(newRegistryChain(t, "optimism")))
	require.NoError(t, r.Register(newRegistryChain(t, "ethereum")))
	assert.ErrorIs(t, r.Register(newRegistryChain(t, "ethereum")), ErrChainAlreadyExists)

	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Exists("ethereum"))
	assert.Equal(t, 2, r.CountByStatus(StatusRegistered))

	chain, err := r.Get("ethereum")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", chain.Config.ID)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "ethereum", list[0].Config.ID)
	assert.Equal(t, "optimism", list[1].Config.ID)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(newRegistryChain(t, "ethereum")))

	require.NoError(t, r.Unregister("ethereum"))
	assert.ErrorIs(t, r.Unregister("ethereum"), ErrChainNotFound)

	_, err := r.Get("ethereum")
	assert.ErrorIs(t, err, ErrChainNotFound)
	assert.False(t, r.Exists("ethereum"))
}
