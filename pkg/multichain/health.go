package multichain

import (
	"context"
	"errors"
	"time"

	"github.com/0xmhha/creation-indexer/pkg/storage"
)

// Health reports how far the live handler trails the source head.
// A chain is healthy while it runs and its source answers.
func (c *Chain) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		ChainID:   c.Config.ID,
		Status:    c.Status(),
		CheckedAt: time.Now(),
	}
	if err := c.LastError(); err != nil {
		status.LastError = err.Error()
	}

	latest, err := c.Source.Height(ctx)
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.LatestHeight = latest

	if c.deps.Coverage != nil {
		head, err := c.deps.Coverage.GetHead(ctx, c.Config.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			status.LastError = err.Error()
			return status
		}
		status.IndexedHeight = head
	}
	if status.LatestHeight > status.IndexedHeight {
		status.SyncLag = status.LatestHeight - status.IndexedHeight
	}

	status.IsHealthy = status.Status == StatusRunning
	return status
}

// HealthCheck checks every registered chain.
func (m *Manager) HealthCheck(ctx context.Context) map[string]HealthStatus {
	out := make(map[string]HealthStatus)
	for _, chain := range m.registry.List() {
		out[chain.Config.ID] = chain.Health(ctx)
	}
	return out
}
