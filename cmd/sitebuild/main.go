// Package main provides an operator CLI that builds one site outside the
// payment flow, from a JSON profile file or the built-in demo profile.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildswift/orchestrator/internal/builder"
	"github.com/buildswift/orchestrator/internal/generator"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/internal/templates"
	"github.com/buildswift/orchestrator/pkg/config"
	"github.com/buildswift/orchestrator/pkg/logger"
)

var errUsage = errors.New("either -config or -demo is required")

func demoProfile() models.BusinessProfile {
	return models.BusinessProfile{
		Name:        "Bella's Italian Kitchen",
		Industry:    "restaurant",
		Tagline:     "Authentic Italian cuisine in the heart of Chicago",
		Phone:       "773-555-8888",
		Address:     "456 Oak Street, Chicago, IL 60614",
		Email:       "info@bellasitaliankitchen.com",
		Website:     "bellasitaliankitchen.com",
		Colors:      &models.Colors{Primary: "#C41E3A", Dark: "#0A0A0A"},
		Services:    []string{"Dine-in", "Private Events", "Catering", "Takeout", "Wine Bar"},
		Hours:       "Tue-Thu 5pm-10pm, Fri-Sat 5pm-11pm, Sun 4pm-9pm",
		Description: "Family-owned since 1998. Handmade pasta, wood-fired pizza, and an award-winning wine list.",
	}
}

func loadProfile(path string, demo bool) (models.BusinessProfile, error) {
	if demo {
		return demoProfile(), nil
	}
	if path == "" {
		return models.BusinessProfile{}, errUsage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.BusinessProfile{}, fmt.Errorf("reading profile: %w", err)
	}
	var p models.BusinessProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return models.BusinessProfile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}

func main() {
	configPath := flag.String("config", "", "Path to a JSON business profile")
	demo := flag.Bool("demo", false, "Build the demo profile")
	flag.Parse()

	profile, err := loadProfile(*configPath, *demo)
	if errors.Is(err, errUsage) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadForBuild()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.FromConfig(cfg.LogLevel, "text")

	store, err := templates.NewStoreWithOverlay(cfg.TemplatesDir)
	if err != nil {
		log.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	b := builder.New(builder.Config{
		BuildsDir:      cfg.BuildsDir,
		SiteBaseDomain: cfg.SiteBaseDomain,
		Timeout:        cfg.Generation.Timeout,
		MaxTokens:      cfg.Generation.MaxTokens,
	}, store, generator.NewAnthropicClient(cfg.Generation, log.Logger), log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	artifact, err := b.Build(ctx, profile)
	if err != nil {
		log.Error("build failed", "business", profile.Name, "error", err)
		os.Exit(1)
	}
	report(os.Stdout, artifact)
}

func report(w io.Writer, a *models.BuildArtifact) {
	fmt.Fprintf(w, "Built %s\n", a.Manifest.Business)
	fmt.Fprintf(w, "  dir:    %s\n", a.Dir)
	fmt.Fprintf(w, "  domain: %s\n", a.Domain)
	fmt.Fprintf(w, "  cost:   $%.4f (%d in / %d out tokens)\n",
		a.Manifest.CostEstimateUSD, a.Manifest.InputTokens, a.Manifest.OutputTokens)
}
