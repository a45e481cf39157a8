// Package handlers provides HTTP handlers for HRP allocation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/allocation"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Service is the allocation service used by the handlers.
type Service interface {
	Compute(ctx context.Context, req allocation.ComputeRequest) (*allocation.Snapshot, error)
	Latest(ctx context.Context) (*allocation.Snapshot, error)
	List(ctx context.Context, limit int) ([]allocation.Snapshot, error)
	Get(ctx context.Context, id string) (*allocation.Snapshot, error)
}

// Handler handles allocation HTTP requests
type Handler struct {
	service Service
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(service Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// RegisterRoutes registers allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allocation", func(r chi.Router) {
		r.Post("/compute", h.HandleCompute)
		r.Post("/rebalance-weights", h.HandleRebalanceWeights)
		r.Get("/latest", h.HandleGetLatest)
		r.Get("/snapshots", h.HandleListSnapshots)
		r.Get("/snapshots/{id}", h.HandleGetSnapshot)
	})
}

// ComputeRequest is the body of POST /api/allocation/compute. A null entry
// in a series marks a missing observation.
type ComputeRequest struct {
	Returns struct {
		Assets []string              `json:"assets"`
		Series map[string][]*float64 `json:"series"`
	} `json:"returns"`
	Linkage string `json:"linkage"`
}

// ComputeResponse is the pure allocation result.
type ComputeResponse struct {
	Weights  []optimization.AssetWeight `json:"weights"`
	Order    []string                   `json:"order"`
	Excluded []string                   `json:"excluded"`
	Linkage  optimization.Linkage       `json:"linkage"`
	Periods  int                        `json:"periods"`
	Assets   []string                   `json:"assets"` // leaf indices of Tree refer to this list
	Tree     *optimization.ClusterNode  `json:"tree,omitempty"`
}

// HandleCompute handles POST /api/allocation/compute
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	linkage, err := optimization.ParseLinkage(req.Linkage)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series := make(map[string][]float64, len(req.Returns.Series))
	for asset, values := range req.Returns.Series {
		col := make([]float64, len(values))
		for i, v := range values {
			if v == nil {
				col[i] = math.NaN()
			} else {
				col[i] = *v
			}
		}
		series[asset] = col
	}

	alloc, err := optimization.NewHRPOptimizer(optimization.HRPOptions{Linkage: linkage}).
		AllocateDetailed(optimization.ReturnsMatrix{Assets: req.Returns.Assets, Series: series})
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, ComputeResponse{
		Weights:  alloc.Weights.Sorted(),
		Order:    alloc.Order,
		Excluded: alloc.Excluded,
		Linkage:  alloc.Linkage,
		Periods:  alloc.Periods,
		Assets:   alloc.Assets,
		Tree:     alloc.Tree,
	})
}

// HandleRebalanceWeights handles POST /api/allocation/rebalance-weights
func (h *Handler) HandleRebalanceWeights(w http.ResponseWriter, r *http.Request) {
	var req allocation.ComputeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	snapshot, err := h.service.Compute(r.Context(), req)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshot)
}

// HandleGetLatest handles GET /api/allocation/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Latest(r.Context())
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshot)
}

// HandleListSnapshots handles GET /api/allocation/snapshots?limit=
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	snapshots, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshots)
}

// HandleGetSnapshot handles GET /api/allocation/snapshots/{id}
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshot)
}

// writeAllocationError maps allocator input errors to 422, a missing
// snapshot to 404 and everything else to 500.
func (h *Handler) writeAllocationError(w http.ResponseWriter, err error) {
	switch {
	case optimization.IsAllocationError(err):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, allocation.ErrSnapshotNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Allocation request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
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
