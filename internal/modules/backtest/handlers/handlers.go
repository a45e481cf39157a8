// Package handlers provides HTTP handlers for backtests.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/backtest"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Runner runs a backtest.
type Runner interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Result, error)
}

// Handler handles backtest HTTP requests
type Handler struct {
	runner Runner
	log    zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(runner Runner, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		log:    log.With().Str("handler", "backtest").Logger(),
	}
}

// RegisterRoutes registers backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/backtest", h.HandleRun)
}

// RunRequest is the body of POST /api/backtest. Dates are YYYY-MM-DD.
type RunRequest struct {
	Symbols        []string `json:"symbols"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	LookbackDays   int      `json:"lookback_days"`
	Rebalance      string   `json:"rebalance"`
	FeeBps         *float64 `json:"fee_bps"`
	InitialCapital float64  `json:"initial_capital"`
	Linkage        string   `json:"linkage"`
}

func (rr RunRequest) toRequest() (backtest.Request, error) {
	req := backtest.Request{
		Symbols: rr.Symbols,
		Config:  backtest.DefaultConfig(),
	}
	var err error
	if rr.Start != "" {
		if req.Start, err = historical.ParseDate(rr.Start); err != nil {
			return req, err
		}
	}
	if rr.End != "" {
		if req.End, err = historical.ParseDate(rr.End); err != nil {
			return req, err
		}
	}
	if rr.LookbackDays != 0 {
		req.LookbackDays = rr.LookbackDays
	}
	if rr.Rebalance != "" {
		req.Rebalance = rr.Rebalance
	}
	if rr.FeeBps != nil {
		req.FeeBps = *rr.FeeBps
	}
	if rr.InitialCapital != 0 {
		req.InitialCapital = rr.InitialCapital
	}
	if rr.Linkage != "" {
		if req.Linkage, err = optimization.ParseLinkage(rr.Linkage); err != nil {
			return req, err
		}
	}
	return req, nil
}

// HandleRun handles POST /api/backtest
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	req, err := body.toRequest()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, backtest.ErrInvalidConfig) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if optimization.IsAllocationError(err) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Backtest failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
