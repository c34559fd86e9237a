package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/opswatch/internal/api/aircraft"
	alarmsapi "github.com/good-yellow-bee/opswatch/internal/api/alarms"
	"github.com/good-yellow-bee/opswatch/internal/api/auth"
	"github.com/good-yellow-bee/opswatch/internal/api/events"
	"github.com/good-yellow-bee/opswatch/internal/api/middleware"
	rulesapi "github.com/good-yellow-bee/opswatch/internal/api/rules"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if len(s.config.JWTSecret) > 0 {
			jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
			r.Use(middleware.JWTAuth(jwtService))
		}

		r.Route("/events", func(r chi.Router) {
			h := events.NewHandler(s.bus)
			r.Post("/", h.Publish)
			r.Get("/", h.List)
			r.Get("/stats", h.Stats)
		})

		r.Route("/rules", func(r chi.Router) {
			h := rulesapi.NewHandler(s.engine)
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/stats", h.Stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Put("/", h.Update)
				r.Delete("/", h.Delete)
			})
		})

		r.Route("/alarms", func(r chi.Router) {
			h := alarmsapi.NewHandler(s.manager)
			r.Get("/", h.List)
			r.Delete("/", h.ClearAll)
			r.Get("/history", h.History)
			r.Get("/stats", h.Stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Post("/acknowledge", h.Acknowledge)
				r.Post("/resolve", h.Resolve)
				r.Delete("/", h.Clear)
			})
		})

		r.Route("/aircraft", func(r chi.Router) {
			h := aircraft.NewHandler(s.tracker)
			r.Get("/", h.List)
			r.Post("/reports", h.Report)
			r.Get("/history", h.History)
			r.Get("/stats", h.Stats)
			r.Get("/{icao24}", h.Get)
		})
	})

	// Health endpoints (public, no auth)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
