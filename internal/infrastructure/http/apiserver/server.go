// Package apiserver provides the JSON API HTTP server
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	_ "github.com/cookbookhq/backend/internal/infrastructure/http/docs"
	"github.com/cookbookhq/backend/internal/infrastructure/http/handlers"
	"github.com/cookbookhq/backend/internal/infrastructure/http/middleware"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/inbound"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/healthcheck"
)

// requestTimeout bounds one request end to end, including model retries.
const requestTimeout = 60 * time.Second

// Server is the API HTTP server.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	server  *http.Server
	router  *chi.Mux
	health  *healthcheck.HealthCheck
	metrics *monitoring.MetricsCollector
}

// New creates the API server with its routes wired.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	extractionService inbound.ExtractionService,
	credentials outbound.CredentialStore,
	cipher outbound.Cipher,
	verifier outbound.TokenVerifier,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.Named("apiserver"),
		health:  health,
		metrics: metrics,
	}

	s.router = s.routes(extractionService, credentials, cipher, verifier)
	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s
}

func (s *Server) routes(
	extractionService inbound.ExtractionService,
	credentials outbound.CredentialStore,
	cipher outbound.Cipher,
	verifier outbound.TokenVerifier,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	if s.cfg.Server.EnableCORS {
		r.Use(middleware.CORS(s.cfg.Server))
	}
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.Metrics(s.metrics))

	h := handlers.NewExtractionHandlers(extractionService, s.logger)
	credH := handlers.NewCredentialHandlers(credentials, cipher, s.logger)

	// Public surface.
	r.Get("/", h.Root)
	r.Get("/hello/{name}", h.Hello)
	r.Get("/health", s.health.Handler())
	r.Get("/health/live", s.health.LivenessHandler())
	r.Get("/health/ready", s.health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Bearer-protected surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier, s.logger))
		r.Use(middleware.JSONOnly())

		r.Post("/recipe", h.ExtractRecipe)
		r.Route("/storage", func(r chi.Router) {
			r.Put("/credential", credH.UpsertCredential)
			r.Delete("/credential", credH.DeleteCredential)
		})
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
	)

	return s.server.ListenAndServe()
}

// Server returns the underlying HTTP server instance.
func (s *Server) Server() *http.Server {
	return s.server
}

// Router returns the assembled router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}
