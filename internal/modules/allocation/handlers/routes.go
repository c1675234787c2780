package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allocation", func(r chi.Router) {
		r.Get("/inverse-volatility", h.HandleInverseVolatility)

		r.Route("/risk-parity", func(r chi.Router) {
			r.Get("/", h.HandleRiskParity)
			r.Get("/chart", h.HandleRiskParityChart)
			r.Post("/solve", h.HandleSolve)
		})
	})
}
