// Package multichain runs the contract-creation pipeline for several chains
// from one process. Each chain owns its source, scanner, coalescer and plan.
package multichain

import (
	"time"
)

// ChainStatus represents the current operational state of a chain.
type ChainStatus string

const (
	// StatusRegistered indicates the chain has been registered but not started.
	StatusRegistered ChainStatus = "registered"
	// StatusStarting indicates the chain is reading the head and planning handlers.
	StatusStarting ChainStatus = "starting"
	// StatusRunning indicates the chain's handlers are being invoked.
	StatusRunning ChainStatus = "running"
	// StatusStopped indicates the chain has been stopped.
	StatusStopped ChainStatus = "stopped"
	// StatusError indicates the chain stopped on an error.
	StatusError ChainStatus = "error"
)

// HealthStatus represents the health state of a chain.
type HealthStatus struct {
	ChainID       string      `json:"chainId"`
	Status        ChainStatus `json:"status"`
	IsHealthy     bool        `json:"isHealthy"`
	LatestHeight  uint64      `json:"latestHeight"`
	IndexedHeight uint64      `json:"indexedHeight"`
	SyncLag       uint64      `json:"syncLag"`
	LastError     string      `json:"lastError,omitempty"`
	CheckedAt     time.Time   `json:"checkedAt"`
}

// ChainInfo contains read-only information about a registered chain.
type ChainInfo struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	ChainID        uint64      `json:"chainId"`
	Status         ChainStatus `json:"status"`
	StartBlock     uint64      `json:"startBlock"`
	Interval       uint64      `json:"interval"`
	ReorgThreshold uint64      `json:"reorgThreshold"`
	SafeBlock      uint64      `json:"safeBlock"`
	LiveStartBlock uint64      `json:"liveStartBlock"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
}
