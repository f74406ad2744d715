package router

import (
	"net/http"

	"resellhub-api/internal/handler"
	"resellhub-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	QueueHandler   *handler.QueueHandler
	FeedHandler    *handler.FeedHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Sync queue endpoints
			if cfg.QueueHandler != nil {
				r.Route("/queue", func(r chi.Router) {
					r.Get("/", cfg.QueueHandler.List)
					r.Get("/aggregation", cfg.QueueHandler.Preview)
					r.Post("/items", cfg.QueueHandler.Mark)
					r.Delete("/items/{inventory_item_id}", cfg.QueueHandler.Unmark)
				})
			}

			// Feed endpoints
			if cfg.FeedHandler != nil {
				r.Route("/feeds", func(r chi.Router) {
					r.Get("/", cfg.FeedHandler.ListActive)
					r.Post("/", cfg.FeedHandler.CreateFeed)
					r.Route("/{feed_id}", func(r chi.Router) {
						r.Get("/", cfg.FeedHandler.Get)
						r.Get("/lines", cfg.FeedHandler.Lines)
						r.Post("/poll", cfg.FeedHandler.Poll)
						r.Post("/cancel", cfg.FeedHandler.Cancel)
					})
				})
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", cfg.AdminHandler.GetStats)
				})
			}
		})
	})

	return r
}
