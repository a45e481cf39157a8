package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/trading", func(r chi.Router) {
		r.Post("/rebalance", h.HandleRebalance) // Plan and (optionally) submit orders
		r.Get("/trades", h.HandleGetTrades)     // Trade ledger
	})
}
