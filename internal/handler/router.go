package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"drivelens/internal/auth"
	"drivelens/internal/events"
	"drivelens/internal/logging"
	"drivelens/internal/metrics"
	"drivelens/internal/preview"
	"drivelens/internal/service"
)

type RouterConfig struct {
	Sessions  *service.SessionService
	Downloads *service.DownloadService
	// Resources serves in-memory preview resources. Nil when resources live
	// in object storage.
	Resources      *preview.Handler
	AllowedOrigins []string
	HealthChecks   map[string]func(*http.Request) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware)

	r.Get("/health", Health(cfg.HealthChecks))
	r.Handle("/metrics", metrics.Handler())

	sessions := NewSessionHandler(cfg.Sessions, events.NewOriginChecker(cfg.AllowedOrigins))
	downloads := NewDownloadHandler(cfg.Downloads)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", sessions.Routes)
		r.Post("/download", downloads.Download)
		if cfg.Resources != nil {
			r.Get("/resources/{id}", cfg.Resources.GetResource)
		}
	})

	return r
}
