// Package api assembles the HTTP router for the cook session engine:
// global middleware, health/version endpoints, and the /cook, /units
// and /recipes route trees (spec §6).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tasteos/cook-session-engine/internal/api/handlers"
	"github.com/tasteos/cook-session-engine/internal/api/middleware"
	"github.com/tasteos/cook-session-engine/internal/config"
)

// NewRouter creates the HTTP router with all API routes wired to h.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.WorkspaceExtractor)
	r.Use(middleware.Telemetry)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Workspace-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Route("/cook", func(r chi.Router) {
			r.Get("/methods", h.MethodCatalog)

			r.Route("/session", func(r chi.Router) {
				r.Post("/start", h.StartSession)
				r.Get("/active", h.ActiveSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetSession)
					r.Patch("/", h.PatchSession)

					r.Route("/adjust", func(r chi.Router) {
						r.Post("/preview", h.AdjustPreview)
						r.Post("/apply", h.AdjustApply)
						r.Post("/undo", h.AdjustUndo)
					})

					r.Route("/method", func(r chi.Router) {
						r.Post("/preview", h.MethodPreview)
						r.Post("/apply", h.MethodApply)
						r.Post("/reset", h.MethodReset)
					})

					r.Post("/complete", h.CompleteSession)
					r.Post("/abandon", h.AbandonSession)
					r.Get("/summary", h.SessionSummary)
					r.Get("/next", h.NextAction)

					r.Route("/events", func(r chi.Router) {
						r.Get("/", h.StreamEvents)
						r.Get("/recent", h.RecentEvents)
					})
				})
			})
		})

		r.Route("/units", func(r chi.Router) {
			r.Post("/convert", h.Convert)
			r.Put("/densities", h.UpsertDensity)
			r.Get("/densities", h.ListDensities)
			r.Delete("/densities/{id}", h.DeleteDensity)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", h.ListRecipes)
			r.Get("/{id}", h.GetRecipe)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"version": cfg.Version})
	}
}
