package rest

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glowdesk/automations/internal/api/rest/handlers"
	customMiddleware "github.com/glowdesk/automations/internal/api/rest/middleware"
	"github.com/glowdesk/automations/pkg/auth"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/metrics"
)

// Router holds the HTTP router and dependencies
type Router struct {
	router   *chi.Mux
	logger   *logger.Logger
	handlers *handlers.Handlers
	tokens   *auth.TokenManager
	keys     *auth.KeyRing
	metrics  *metrics.Metrics
}

// NewRouter creates a new HTTP router
func NewRouter(log *logger.Logger, h *handlers.Handlers, tokens *auth.TokenManager, keys *auth.KeyRing, m *metrics.Metrics) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(customMiddleware.Metrics(m))

	allowedOrigins := []string{"http://localhost:3000"}
	if originsEnv := os.Getenv("ALLOWED_ORIGINS"); originsEnv != "" {
		allowedOrigins = strings.Split(originsEnv, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Business-ID", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	return &Router{
		router:   r,
		logger:   log,
		handlers: h,
		tokens:   tokens,
		keys:     keys,
		metrics:  m,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	// Prometheus metrics endpoint (no auth required)
	r.router.Handle("/metrics", promhttp.Handler())

	// Health endpoints (no auth required)
	r.router.Get("/health", r.handlers.Health.Health)
	r.router.Get("/ready", r.handlers.Health.Ready)

	// API v1, service-to-service auth throughout
	r.router.Route("/api/v1", func(router chi.Router) {
		router.Use(customMiddleware.ServiceAuth(r.tokens, r.keys, r.logger))

		// Events: producers push business facts here
		router.Route("/events", func(router chi.Router) {
			router.With(customMiddleware.RequireScope("events:publish", r.logger)).Post("/", r.handlers.Event.Publish)
			router.With(customMiddleware.RequireScope("events:read", r.logger)).Get("/", r.handlers.Event.List)
		})

		// Workflow definitions
		router.Route("/workflows", func(router chi.Router) {
			router.With(customMiddleware.RequireScope("workflows:read", r.logger)).Get("/", r.handlers.Workflow.List)
			router.With(customMiddleware.RequireScope("workflows:read", r.logger)).Get("/{id}", r.handlers.Workflow.Get)

			router.With(customMiddleware.RequireScope("workflows:write", r.logger)).Post("/", r.handlers.Workflow.Create)
			router.With(customMiddleware.RequireScope("workflows:write", r.logger)).Put("/{id}", r.handlers.Workflow.Update)
			router.With(customMiddleware.RequireScope("workflows:write", r.logger)).Delete("/{id}", r.handlers.Workflow.Delete)
			router.With(customMiddleware.RequireScope("workflows:write", r.logger)).Post("/{id}/activate", r.handlers.Workflow.Activate)
			router.With(customMiddleware.RequireScope("workflows:write", r.logger)).Post("/{id}/deactivate", r.handlers.Workflow.Deactivate)
		})

		// Scheduled jobs (read-only inspection)
		router.Route("/jobs", func(router chi.Router) {
			router.With(customMiddleware.RequireScope("jobs:read", r.logger)).Get("/", r.handlers.Job.List)
		})
	})
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.router
}
