package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kycshield/kycshield/internal/audit"
	"github.com/kycshield/kycshield/internal/domain"
	"github.com/kycshield/kycshield/internal/ensemble"
	"github.com/kycshield/kycshield/internal/fraud"
	"github.com/kycshield/kycshield/internal/ratelimit"
	"github.com/kycshield/kycshield/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, ens *ensemble.Engine, fraudEngine *fraud.Engine, blacklist *fraud.Blacklist, ruleEngine *rules.Engine, limiter *ratelimit.Limiter, auditor *audit.Emitter, version string) *Server {
	handler := NewHandler(repo, cache, ens, fraudEngine, blacklist, ruleEngine, auditor, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (not rate limited)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (rate limited per client IP)
	router.Route("/", func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter, auditor))

		// Verification
		r.Post("/verify/complete", handler.VerifyComplete)
		r.Post("/verify/kyc", handler.VerifyKYC)

		// Fraud scoring
		r.Post("/fraud/score", handler.ScoreFraud)
		r.Get("/fraud/history/{userId}", handler.GetFraudHistory)

		// Blacklist management
		r.Post("/blacklist", handler.AddBlacklist)
		r.Delete("/blacklist", handler.RemoveBlacklist)

		// Verification retrieval
		r.Get("/verifications/{id}", handler.GetVerification)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
