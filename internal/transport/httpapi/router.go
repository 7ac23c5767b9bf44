package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/handler"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger           *logger.Logger
	AllowedOrigins   []string
	MigrationHandler *handler.MigrationHandler
	EventsHandler    *handler.EventsHandler
	HealthHandler    *handler.HealthHandler
	DocsHandler      *handler.DocsHandler
	JWTMiddleware    func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit())

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	if cfg.DocsHandler != nil {
		r.Get("/docs", cfg.DocsHandler.GetOpenAPISpec)
		r.Get("/docs/info", cfg.DocsHandler.GetDocsInfo)
	}

	// Protected routes (require JWT authentication)
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTMiddleware == nil {
			return
		}
		r.Use(cfg.JWTMiddleware)

		if cfg.MigrationHandler != nil {
			r.Route("/migrations", func(r chi.Router) {
				r.Post("/", cfg.MigrationHandler.CreateMigration)
				r.Get("/", cfg.MigrationHandler.ListMigrations)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.MigrationHandler.GetMigration)
					r.Put("/files/{kind}", cfg.MigrationHandler.UploadFile)
					r.Post("/stages/{stage}", cfg.MigrationHandler.StartStage)
					r.Post("/cancel", cfg.MigrationHandler.CancelMigration)
					r.Get("/errors", cfg.MigrationHandler.GetErrors)
					// CSV exports only
					r.With(chimiddleware.Compress(5, "text/csv")).Get("/export", cfg.MigrationHandler.ExportMigration)
					if cfg.EventsHandler != nil {
						r.Get("/events", cfg.EventsHandler.StreamProgress)
					}
				})
			})
		}
	})

	return r
}
