// Package router provides HTTP routing configuration using Chi.
package router

import (
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remiblancher/wincert/internal/api/handler"
	"github.com/remiblancher/wincert/internal/api/middleware"
	"github.com/remiblancher/wincert/internal/api/service"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config holds router configuration.
type Config struct {
	Version string
	Service *service.Service
	Logger  *slog.Logger

	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// RateLimit is the mutating requests per second per client, Burst the
	// bucket size. Zero disables limiting.
	RateLimit float64
	Burst     int

	CORSOrigins []string

	// AuditOK reports whether the audit log is writable.
	AuditOK func() bool
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (always enabled)
	healthHandler := handler.NewHealthHandler(cfg.Version, len(cfg.Service.Hosts()), cfg.AuditOK)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// OpenAPI spec
	r.Get("/api/openapi.yaml", serveOpenAPISpec)

	var limiter *middleware.ClientLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewClientLimiter(cfg.RateLimit, cfg.Burst)
	}

	hostHandler := handler.NewHostHandler(cfg.Service)
	deployHandler := handler.NewDeployHandler(cfg.Service)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/hosts", hostHandler.List)

		r.Route("/hosts/{host}", func(r chi.Router) {
			r.Get("/inventory", hostHandler.Inventory)
			r.Get("/bindings", hostHandler.Bindings)

			// Mutating operations
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(limiter))
				r.Post("/import", deployHandler.Import)
				r.Post("/bind", deployHandler.Bind)
			})
		})
	})

	return r
}

// serveOpenAPISpec serves the OpenAPI specification file.
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}
