// Package api provides the HTTP front end of the orchestrator.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/buildswift/orchestrator/internal/api/handlers"
	"github.com/buildswift/orchestrator/internal/api/health"
	"github.com/buildswift/orchestrator/internal/api/middleware"
	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/auth"
	"github.com/buildswift/orchestrator/internal/metrics"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/internal/social"
	"github.com/buildswift/orchestrator/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// PaymentGateway is the payment processor surface the router needs.
type PaymentGateway interface {
	handlers.CheckoutCreator
	handlers.WebhookVerifier
	Packages() []string
}

// Dependencies are the components the router wires to HTTP.
type Dependencies struct {
	Gateway   PaymentGateway
	Processor handlers.EventProcessor
	Social    handlers.Publisher
	Logs      applog.Store
	// Auth guards the admin endpoints; nil leaves them open.
	Auth    *auth.Service
	Metrics *metrics.Metrics
	Health  *health.Checker
}

// Server represents the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Dependencies
	config     *config.Config
	logger     *slog.Logger
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker(Version, nil)
	}

	s := &Server{
		deps:   deps,
		config: cfg,
		logger: logger,
	}
	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	if s.deps.Metrics != nil {
		r.Use(middleware.Instrument(s.deps.Metrics))
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Get("/health", s.deps.Health.Handler())

	pages := handlers.NewPageHandler(s.config.Stripe.PublishableKey, s.deps.Gateway.Packages(), s.logger)
	r.Get("/", pages.Index)
	r.Get("/success", pages.Success)
	r.Get("/cancel", pages.Cancel)

	var observe handlers.WebhookObserver
	if s.deps.Metrics != nil {
		observe = s.deps.Metrics.ObserveWebhook
	}
	webhookHandler := handlers.NewWebhookHandler(s.deps.Gateway, s.deps.Processor, observe, s.logger)
	r.Post("/webhook", webhookHandler.Receive)

	limiter := middleware.NewRateLimiter(s.config.CheckoutRateLimit, s.config.CheckoutBurst, s.logger)
	checkoutHandler := handlers.NewCheckoutHandler(s.deps.Gateway, s.logger)
	auditHandler := handlers.NewAuditHandler(s.deps.Logs, s.logger)
	logHandler := handlers.NewLogHandler(s.deps.Logs, s.logger)
	adminAuth := middleware.NewAdminAuth(s.deps.Auth, s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/checkout", checkoutHandler.Create)
			r.Post("/audit", auditHandler.Create)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuth.Authenticate)
			r.Get("/payments", logHandler.List(models.LogPayments))
			r.Get("/deployments", logHandler.List(models.LogDeployments))
		})
	})

	socialHandler := handlers.NewSocialHandler(s.deps.Social, s.deps.Logs, s.logger)
	r.Route("/meta", func(r chi.Router) {
		r.Post("/fb/post", socialHandler.Publish(social.Facebook))
		r.Post("/ig/post", socialHandler.Publish(social.Instagram))
		r.Post("/x/post", socialHandler.Publish(social.X))
		r.Post("/youtube/upload", socialHandler.Publish(social.YouTube))
		r.Post("/tiktok/post", socialHandler.Publish(social.TikTok))
		r.Get("/status", socialHandler.Status)
		r.Get("/posts", socialHandler.Posts)
	})

	s.router = r
}

// Start starts the HTTP server and blocks until ctx is done or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Webhook deliveries wait for the build.
		WriteTimeout: s.config.Generation.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr, "version", Version)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
