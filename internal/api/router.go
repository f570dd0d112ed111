package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sheetsync/internal/config"
	"sheetsync/internal/middleware"
)

// NewRouter assembles the middleware chain and mounts all routes. /healthz
// is public; everything under /v1 requires a bearer token when a JWT secret
// is configured.
func NewRouter(cfg *config.Config, logger *slog.Logger, h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.AuthEnabled() {
			r.Use(middleware.Auth([]byte(cfg.JWTSecret)))
		}
		r.Get("/pipelines", h.ListPipelines)
		r.Post("/pipelines/{name}/runs", h.CreateRun)
		r.Post("/pipelines/{name}/wipe", h.WipeRows)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
	})

	return r
}
