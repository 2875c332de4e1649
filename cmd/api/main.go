// Package main provides the entry point for the API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildswift/orchestrator/internal/api"
	"github.com/buildswift/orchestrator/internal/api/health"
	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/auth"
	"github.com/buildswift/orchestrator/internal/builder"
	"github.com/buildswift/orchestrator/internal/dedupe"
	"github.com/buildswift/orchestrator/internal/fulfillment"
	"github.com/buildswift/orchestrator/internal/generator"
	"github.com/buildswift/orchestrator/internal/metrics"
	"github.com/buildswift/orchestrator/internal/payments"
	"github.com/buildswift/orchestrator/internal/social"
	"github.com/buildswift/orchestrator/internal/templates"
	"github.com/buildswift/orchestrator/pkg/config"
	"github.com/buildswift/orchestrator/pkg/logger"
)

func main() {
	bootLog := logger.Default()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.FromConfig(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	logs, err := applog.NewFileStore(cfg.DataDir, log.WithComponent("applog").Logger, applog.WithAppendHook(m.ObserveAppend))
	if err != nil {
		log.Error("failed to open data directory", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	store, err := templates.NewStoreWithOverlay(cfg.TemplatesDir)
	if err != nil {
		log.Error("failed to load templates", "dir", cfg.TemplatesDir, "error", err)
		os.Exit(1)
	}

	gen := generator.NewAnthropicClient(cfg.Generation, log.WithComponent("generator").Logger)
	siteBuilder := builder.New(builder.Config{
		BuildsDir:      cfg.BuildsDir,
		SiteBaseDomain: cfg.SiteBaseDomain,
		Timeout:        cfg.Generation.Timeout,
		MaxTokens:      cfg.Generation.MaxTokens,
	}, store, gen, log.WithComponent("builder").Logger, builder.WithObserver(m.ObserveBuild))

	gateway := payments.NewGateway(cfg.Stripe, cfg.PublicBaseURL, log.WithComponent("payments").Logger)

	processor := fulfillment.New(siteBuilder, logs, dedupe.New(cfg.Dedupe.Capacity, cfg.Dedupe.Retention),
		log.WithComponent("fulfillment").Logger)
	seeded, err := processor.Seed(ctx)
	if err != nil {
		log.Error("failed to seed processed events", "error", err)
		os.Exit(1)
	}
	log.Info("processed events seeded", "payments", seeded)

	socialSvc := social.NewService(logs, log.WithComponent("social").Logger, social.DefaultPublishers(cfg.Social),
		social.WithObserver(func(p social.Platform, outcome string) {
			m.ObservePublish(string(p), outcome)
		}))

	var authService *auth.Service
	if cfg.AdminJWTSecret != "" {
		authService = auth.NewService(&auth.Config{
			JWTSecret:   []byte(cfg.AdminJWTSecret),
			TokenExpiry: cfg.AdminJWTExpiry,
		}, log.WithComponent("auth").Logger)
	} else {
		log.Warn("ADMIN_JWT_SECRET not set, admin endpoints are unauthenticated")
	}

	checker := health.NewChecker(api.Version, map[string]health.Pinger{
		"builds_dir": health.WritableDir(cfg.BuildsDir),
		"data_dir":   health.WritableDir(cfg.DataDir),
	})

	server := api.NewServer(cfg, api.Dependencies{
		Gateway:   gateway,
		Processor: processor,
		Social:    socialSvc,
		Logs:      logs,
		Auth:      authService,
		Metrics:   m,
		Health:    checker,
	}, log.Logger)

	log.Info("starting orchestrator",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
		"builds_dir", cfg.BuildsDir,
		"data_dir", cfg.DataDir,
		"platforms", socialSvc.Platforms(),
	)

	if err := server.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
