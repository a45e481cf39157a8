// Package handlers provides HTTP handlers for trade execution.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/aristath/hrpfolio/internal/modules/trading"
	"github.com/rs/zerolog"
)

// Rebalancer executes rebalances and reads the trade ledger.
type Rebalancer interface {
	Rebalance(ctx context.Context, target optimization.WeightVector, dryRun bool) (*trading.RebalanceReport, error)
	Trades(ctx context.Context, limit int) ([]trading.Trade, error)
}

// TargetProvider computes the current target weights.
type TargetProvider interface {
	TargetWeights(ctx context.Context) (optimization.WeightVector, error)
}

// TradingHandlers contains HTTP handlers for trading API
type TradingHandlers struct {
	rebalancer  Rebalancer
	targets     TargetProvider
	liveEnabled bool
	log         zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance. Unless
// liveEnabled is set, every rebalance is a dry run.
func NewTradingHandlers(rebalancer Rebalancer, targets TargetProvider, liveEnabled bool, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		rebalancer:  rebalancer,
		targets:     targets,
		liveEnabled: liveEnabled,
		log:         log.With().Str("handler", "trading").Logger(),
	}
}

// RebalanceRequest optionally overrides the target weights.
type RebalanceRequest struct {
	Weights optimization.WeightVector `json:"weights"`
}

// HandleRebalance rebalances the account
// POST /api/trading/rebalance?dry_run=true
func (h *TradingHandlers) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	dryRun := true
	if v := r.URL.Query().Get("dry_run"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid dry_run parameter")
			return
		}
		dryRun = parsed
	}
	if !dryRun && !h.liveEnabled {
		h.writeError(w, http.StatusForbidden, "live trading is disabled (set TRADING_ENABLED=true)")
		return
	}

	var req RebalanceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	target := req.Weights
	if len(target) == 0 {
		var err error
		target, err = h.targets.TargetWeights(r.Context())
		if err != nil {
			if optimization.IsAllocationError(err) {
				h.writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			h.log.Error().Err(err).Msg("Failed to compute target weights")
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	report, err := h.rebalancer.Rebalance(r.Context(), target, dryRun)
	if err != nil {
		h.log.Error().Err(err).Bool("dry_run", dryRun).Msg("Rebalance failed")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeData(w, http.StatusOK, report)
}

// HandleGetTrades returns trade history
// GET /api/trading/trades?limit=50
func (h *TradingHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	trades, err := h.rebalancer.Trades(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list trades")
		h.writeError(w, http.StatusInternalServerError, "Failed to list trades")
		return
	}
	h.writeData(w, http.StatusOK, trades)
}

func (h *TradingHandlers) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *TradingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
