// Package handlers provides HTTP handlers for historical data operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/pkg/formulas"
	"github.com/rs/zerolog"
)

// HistoryReader is the subset of HistoryDB used by the handlers.
type HistoryReader interface {
	GetDailyPrices(ctx context.Context, symbol, since, until string) ([]historical.DailyPrice, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// Handler handles historical data HTTP requests
type Handler struct {
	historyDB HistoryReader
	loader    *historical.Loader
	log       zerolog.Logger
}

// NewHandler creates a new historical data handler
func NewHandler(historyDB HistoryReader, loader *historical.Loader, log zerolog.Logger) *Handler {
	return &Handler{
		historyDB: historyDB,
		loader:    loader,
		log:       log.With().Str("handler", "historical").Logger(),
	}
}

// HandleListSymbols handles GET /api/historical/symbols
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.historyDB.ListSymbols(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list symbols")
		h.writeError(w, http.StatusInternalServerError, "Failed to list symbols")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": symbols,
			"count":   len(symbols),
		},
		"metadata": metadata(),
	})
}

// HandleGetDailyPrices handles GET /api/historical/prices/{symbol}?since=&until=
func (h *Handler) HandleGetDailyPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	since := r.URL.Query().Get("since")
	until := r.URL.Query().Get("until")
	for _, d := range []string{since, until} {
		if d == "" {
			continue
		}
		if _, err := historical.ParseDate(d); err != nil {
			h.writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}

	prices, err := h.historyDB.GetDailyPrices(r.Context(), strings.ToUpper(symbol), since, until)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get daily prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to get daily prices")
		return
	}
	if prices == nil {
		prices = []historical.DailyPrice{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": strings.ToUpper(symbol),
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": metadata(),
	})
}

// HandleGetCorrelationMatrix handles GET /api/historical/correlation-matrix?symbols=&days=
func (h *Handler) HandleGetCorrelationMatrix(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) < 2 {
		h.writeError(w, http.StatusBadRequest, "symbols parameter needs at least two symbols")
		return
	}

	days := 90
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed > 1 {
			days = parsed
		}
	}

	rm, err := h.loader.LoadReturns(r.Context(), symbols, days, time.Now().UTC())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to load returns for correlation matrix")
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	n := len(rm.Assets)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			matrix[i][j] = formulas.Correlation(rm.Series[rm.Assets[i]], rm.Series[rm.Assets[j]])
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": rm.Assets,
			"matrix":  matrix,
			"periods": rm.Periods(),
		},
		"metadata": metadata(),
	})
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
