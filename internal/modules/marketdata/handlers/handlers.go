// Package handlers provides HTTP handlers for market data sync.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/marketdata"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Syncer runs a market data sync.
type Syncer interface {
	Sync(ctx context.Context) ([]marketdata.SyncResult, error)
}

// Handler handles market data HTTP requests
type Handler struct {
	syncer Syncer
	log    zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(syncer Syncer, log zerolog.Logger) *Handler {
	return &Handler{
		syncer: syncer,
		log:    log.With().Str("handler", "marketdata").Logger(),
	}
}

// RegisterRoutes registers market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/marketdata", func(r chi.Router) {
		r.Post("/sync", h.HandleSync)
	})
}

// HandleSync handles POST /api/marketdata/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	results, err := h.syncer.Sync(r.Context())
	status := http.StatusOK
	if err != nil {
		h.log.Error().Err(err).Msg("Market data sync failed")
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"results": results,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); encErr != nil {
		h.log.Error().Err(encErr).Msg("Failed to encode JSON response")
	}
}
