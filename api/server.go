package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all routes. hub and metrics may be
// nil, in which case /api/ws is not mounted and /metrics answers 503.
func NewRouter(h *Handler, hub *Hub, metrics *Metrics, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auctions
		r.Get("/auctions", h.ListAuctions)
		r.Post("/auctions", h.CreateAuction)
		r.Get("/auctions/{id}", h.GetAuction)
		r.Delete("/auctions/{id}", h.DeleteAuction)

		// Bidders
		r.Route("/auctions/{id}/bidders/{bidderID}", func(r chi.Router) {
			r.Get("/", h.GetBidderStatus)
			r.Get("/schedule", h.GetSchedule)
			r.Put("/plan", h.UpdatePlan)
			r.Post("/units/{unit}/settle", h.SettleUnit)
			r.Delete("/units/{unit}/settle", h.UnsettleUnit)
		})

		// Portfolio
		r.Get("/portfolio", h.GetPortfolio)

		// Scenarios
		r.Get("/scenarios", h.ListScenarios)
		r.Post("/scenarios/load", h.LoadScenario)

		if hub != nil {
			r.Get("/ws", hub.ServeWS)
		}
	})

	return r
}
