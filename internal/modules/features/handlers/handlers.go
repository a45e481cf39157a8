// Package handlers provides HTTP handlers for feature engineering.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/features"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Computer computes feature sets.
type Computer interface {
	Compute(ctx context.Context, symbols []string, lookbackDays int) ([]features.FeatureSet, error)
}

// Handler handles feature HTTP requests
type Handler struct {
	service        Computer
	defaultSymbols []string
	log            zerolog.Logger
}

// NewHandler creates a new feature handler. defaultSymbols is used when the
// request names none.
func NewHandler(service Computer, defaultSymbols []string, log zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		defaultSymbols: defaultSymbols,
		log:            log.With().Str("handler", "features").Logger(),
	}
}

// RegisterRoutes registers feature routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/features", h.HandleGetFeatures)
}

// HandleGetFeatures handles GET /api/features?symbols=&lookback_days=
func (h *Handler) HandleGetFeatures(w http.ResponseWriter, r *http.Request) {
	symbols := h.defaultSymbols
	if s := r.URL.Query().Get("symbols"); s != "" {
		symbols = nil
		for _, part := range strings.Split(s, ",") {
			if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
				symbols = append(symbols, p)
			}
		}
	}

	lookback := 120
	if v := r.URL.Query().Get("lookback_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lookback_days must be a positive integer"})
			return
		}
		lookback = parsed
	}

	sets, err := h.service.Compute(r.Context(), symbols, lookback)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute features")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to compute features"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"features": sets,
		},
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": lookback,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
