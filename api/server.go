/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the browser client

ROUTE GROUPS:
  /api/progress, /api/events, /api/history   Progression
  /api/shops/*, /api/favorites               Shops and user actions
  /api/scenarios/*                           Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/checkin/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are used when none are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", h.GetProgress)
		r.Get("/events", h.StreamEvents)
		r.Get("/history", h.GetHistory)

		r.Route("/shops", func(r chi.Router) {
			r.Get("/", h.SearchShops)
			r.Get("/nearby", h.NearbyShops)
			r.Get("/{id}", h.GetShop)
			r.Post("/{id}/view", h.ViewShop)
			r.Post("/{id}/favorite", h.ToggleFavorite)
			r.Post("/{id}/checkin", h.CheckIn)
		})
		r.Get("/favorites", h.ListFavorites)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
