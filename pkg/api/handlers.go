package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/constants"
	"github.com/0xmhha/creation-indexer/pkg/multichain"
	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/storage"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// ContractsResponse is the body of a block range query
type ContractsResponse struct {
	ChainID   string                     `json:"chainId"`
	From      uint64                     `json:"from"`
	To        uint64                     `json:"to"`
	Count     int                        `json:"count"`
	Contracts []*types.EnrichedDiscovery `json:"contracts"`
}

// RangeJSON is a half-open block range
type RangeJSON struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// CoverageResponse lists the scanned ranges and the detected gaps
type CoverageResponse struct {
	ChainID string      `json:"chainId"`
	Head    *uint64     `json:"head,omitempty"`
	Covered []RangeJSON `json:"covered"`
	Gaps    []RangeJSON `json:"gaps"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                             `json:"status"`
	Timestamp string                             `json:"timestamp"`
	Chains    map[string]multichain.HealthStatus `json:"chains,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if s.health != nil {
		resp.Chains = s.health.HealthCheck(r.Context())
		for _, h := range resp.Chains {
			if !h.IsHealthy {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
	}

	writeJSON(w, code, resp)
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")
	id := chi.URLParam(r, "id")

	c, err := s.storage.GetContract(r.Context(), chainID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "contract not found")
		return
	case err != nil:
		s.logger.Error("failed to get contract",
			zap.String("chain", chainID),
			zap.String("id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get contract")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleContractsByRange(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")
	q := r.URL.Query()

	from, err := strconv.ParseUint(q.Get("from"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be a block number")
		return
	}
	to, err := strconv.ParseUint(q.Get("to"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be a block number")
		return
	}

	limit := constants.DefaultPaginationLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit > constants.DefaultMaxPaginationLimit {
			limit = constants.DefaultMaxPaginationLimit
		}
	}

	contracts, err := s.storage.GetContractsByBlockRange(r.Context(), chainID, scan.BlockRange{From: from, To: to}, limit)
	if err != nil {
		s.logger.Error("failed to get contracts by range",
			zap.String("chain", chainID),
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get contracts")
		return
	}
	if contracts == nil {
		contracts = []*types.EnrichedDiscovery{}
	}

	writeJSON(w, http.StatusOK, ContractsResponse{
		ChainID:   chainID,
		From:      from,
		To:        to,
		Count:     len(contracts),
		Contracts: contracts,
	})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")
	ctx := r.Context()

	covered, err := s.storage.GetCoverage(ctx, chainID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get coverage")
		return
	}
	gaps, err := s.storage.GetGaps(ctx, chainID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get gaps")
		return
	}

	resp := CoverageResponse{
		ChainID: chainID,
		Covered: toRangeJSON(covered),
		Gaps:    toRangeJSON(gaps),
	}
	if head, err := s.storage.GetHead(ctx, chainID); err == nil {
		resp.Head = &head
	}

	writeJSON(w, http.StatusOK, resp)
}

func toRangeJSON(ranges []scan.BlockRange) []RangeJSON {
	out := make([]RangeJSON, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, RangeJSON{From: r.From, To: r.To})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
