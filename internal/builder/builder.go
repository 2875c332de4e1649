// Package builder turns a business profile into a published website bundle:
// index.html from one generative API call plus sitemap.xml, robots.txt and a
// manifest, written atomically under a directory named by the slug.
package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/buildswift/orchestrator/internal/generator"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/internal/templates"
)

// MaxNameLength bounds the business name accepted for a build.
const MaxNameLength = 200

// Build outcomes passed to the observer.
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidProfile   = "invalid_profile"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeStorageError     = "storage_error"
)

// Config holds builder settings.
type Config struct {
	BuildsDir      string
	SiteBaseDomain string
	Timeout        time.Duration
	MaxTokens      int
}

// Observer is notified once per finished build.
type Observer func(outcome string, costUSD float64)

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the time source used for manifests and sitemaps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithObserver registers a build observer.
func WithObserver(o Observer) Option {
	return func(b *Builder) { b.observe = o }
}

// Builder generates and publishes site bundles.
type Builder struct {
	cfg       Config
	templates *templates.Store
	gen       generator.Generator
	logger    *slog.Logger
	now       func() time.Time
	observe   Observer

	// publishMu serializes slug resolution and the directory swap.
	publishMu sync.Mutex
}

// New creates a Builder.
func New(cfg Config, store *templates.Store, gen generator.Generator, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BuildsDir == "" {
		cfg.BuildsDir = "builds"
	}
	if cfg.SiteBaseDomain == "" {
		cfg.SiteBaseDomain = "buildswift.site"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	b := &Builder{
		cfg:       cfg,
		templates: store,
		gen:       gen,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildsDir returns the root directory bundles are published under.
func (b *Builder) BuildsDir() string {
	return b.cfg.BuildsDir
}

// ValidateProfile checks the fields a build cannot proceed without.
func ValidateProfile(p models.BusinessProfile) error {
	if err := validateProfile(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

func validateProfile(p models.BusinessProfile) error {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return errors.New("business name is required")
	case len(name) > MaxNameLength:
		return fmt.Errorf("business name exceeds %d characters", MaxNameLength)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return errors.New("business name contains control characters")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return fmt.Errorf("email %q is not an address", p.Email)
	}
	return nil
}

// Build generates and publishes the bundle for profile. The build runs
// detached from ctx cancellation, bounded by the configured timeout, so a
// client disconnect never leaves a half-written bundle.
func (b *Builder) Build(ctx context.Context, profile models.BusinessProfile) (*models.BuildArtifact, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if err := validateProfile(profile); err != nil {
		b.finish(OutcomeInvalidProfile, 0)
		return nil, newBuildError(ErrInvalidProfile, StageValidate, "", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.Timeout)
	defer cancel()

	industry := templates.NormalizeIndustry(profile.Industry)
	if industry == "" {
		industry = models.DefaultIndustry
	}
	tmpl, matched := b.templates.LookupOrDefault(industry)
	fingerprint := Fingerprint(profile.Name)
	base := baseSlug(profile.Name, fingerprint)

	b.publishMu.Lock()
	slug, err := b.resolveSlug(base, fingerprint)
	b.publishMu.Unlock()
	if err != nil {
		b.finish(OutcomeStorageError, 0)
		return nil, newBuildError(ErrStorage, StageSlug, "", err)
	}
	domain := siteDomain(profile.Website, slug, b.cfg.SiteBaseDomain)

	logger := b.logger.With("slug", slug, "industry", industry, "template", tmpl.Key)
	if !matched {
		logger.Info("no template for industry, using default")
	}

	prompt, err := b.templates.RenderPrompt(templates.PromptData{
		Profile:  profile,
		Industry: industry,
		Domain:   domain,
		Template: tmpl,
		Colors:   profile.Palette(),
		Year:     b.now().Year(),
	})
	if err != nil {
		b.finish(OutcomeGenerationFailed, 0)
		return nil, newBuildError(ErrGenerationFailed, StagePrompt, slug, err)
	}

	logger.Info("generating site")
	res, err := b.gen.Generate(ctx, generator.Request{
		System:    templates.SystemPrompt,
		Prompt:    prompt,
		MaxTokens: b.cfg.MaxTokens,
	})
	if err != nil {
		logger.Error("generation failed", "error", err)
		b.finish(OutcomeGenerationFailed, 0)
		return nil, newBuildError(ErrGenerationFailed, StageGenerate, slug, err)
	}

	page := generator.StripCodeFences(res.Text)
	if res.Truncated() {
		logger.Error("generation hit the token limit", "output_tokens", res.OutputTokens)
		b.finish(OutcomeGenerationFailed, res.CostUSD)
		return nil, newBuildError(ErrGenerationFailed, StageGenerate, slug,
			fmt.Errorf("%w: output truncated at %d tokens", generator.ErrMalformedResponse, res.OutputTokens))
	}
	if err := checkPage(page, profile.Name); err != nil {
		logger.Error("generated page rejected", "error", err)
		b.finish(OutcomeGenerationFailed, res.CostUSD)
		return nil, newBuildError(ErrGenerationFailed, StageGenerate, slug,
			fmt.Errorf("%w: %v", generator.ErrMalformedResponse, err))
	}

	created := b.now().UTC()
	cost := generator.EstimateCost(res.InputTokens, res.OutputTokens)
	assemble := func(slug string) (*models.BuildArtifact, []byte, error) {
		domain := siteDomain(profile.Website, slug, b.cfg.SiteBaseDomain)
		manifest := models.Manifest{
			Business:        profile.Name,
			Slug:            slug,
			Domain:          domain,
			Industry:        industry,
			Template:        tmpl.Key,
			CreatedAt:       created,
			Model:           res.Model,
			InputTokens:     res.InputTokens,
			OutputTokens:    res.OutputTokens,
			CostEstimateUSD: cost,
			Files:           append([]string(nil), models.ArtifactFiles...),
			Status:          models.ManifestStatusReady,
			Fingerprint:     fingerprint,
			SourceProfile:   profile,
		}
		manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return nil, nil, err
		}
		return &models.BuildArtifact{
			Slug:     slug,
			Domain:   domain,
			HTML:     []byte(page),
			Sitemap:  renderSitemap(domain, created),
			Robots:   renderRobots(profile.Name, domain),
			Manifest: manifest,
		}, manifestJSON, nil
	}

	artifact, manifestJSON, err := assemble(slug)
	if err != nil {
		b.finish(OutcomeStorageError, cost)
		return nil, newBuildError(ErrStorage, StagePublish, slug, err)
	}

	b.publishMu.Lock()
	// Another business may have claimed the slug while this one was generating.
	final, err := b.resolveSlug(base, fingerprint)
	if err == nil && final != slug {
		slug = final
		logger = logger.With("resolved_slug", slug)
		logger.Warn("slug claimed during generation, publishing under re-resolved slug")
		artifact, manifestJSON, err = assemble(slug)
	}
	var dir string
	if err == nil {
		dir, err = b.publishLocked(artifact, manifestJSON)
	}
	b.publishMu.Unlock()
	if err != nil {
		logger.Error("publishing bundle failed", "error", err)
		b.finish(OutcomeStorageError, cost)
		return nil, newBuildError(ErrStorage, StagePublish, slug, err)
	}
	artifact.Dir = dir

	logger.Info("site built",
		"domain", artifact.Domain,
		"dir", dir,
		"cost_usd", cost,
	)
	b.finish(OutcomeSuccess, cost)
	return artifact, nil
}

// publishLocked swaps the bundle into place. Callers hold publishMu and have
// resolved a.Slug under it.
func (b *Builder) publishLocked(a *models.BuildArtifact, manifestJSON []byte) (string, error) {
	return publishBundle(b.cfg.BuildsDir, a.Slug, []bundleFile{
		{models.FileIndex, a.HTML},
		{models.FileSitemap, a.Sitemap},
		{models.FileRobots, a.Robots},
		{models.FileManifest, manifestJSON},
	})
}

// resolveSlug returns slug when it is free or already owned by the same
// business, otherwise the fingerprint-suffixed slug.
func (b *Builder) resolveSlug(slug, fingerprint string) (string, error) {
	owner, err := b.slugOwner(slug)
	if err != nil {
		return "", err
	}
	if owner == "" || owner == fingerprint {
		return slug, nil
	}

	alt := suffixedSlug(slug, fingerprint)
	owner, err = b.slugOwner(alt)
	if err != nil {
		return "", err
	}
	if owner != "" && owner != fingerprint {
		return "", fmt.Errorf("slugs %q and %q are both taken", slug, alt)
	}
	b.logger.Info("slug taken by another business, using suffixed slug", "slug", slug, "suffixed", alt)
	return alt, nil
}

// foreignOwner marks a directory whose owner cannot be determined.
const foreignOwner = "?"

// slugOwner returns the fingerprint of the business occupying slug, "" when
// the directory does not exist.
func (b *Builder) slugOwner(slug string) (string, error) {
	dir := filepath.Join(b.cfg.BuildsDir, slug)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("checking %s: %w", dir, err)
	}
	m, err := b.LoadManifest(slug)
	if err != nil {
		return foreignOwner, nil
	}
	if m.Fingerprint != "" {
		return m.Fingerprint, nil
	}
	if m.Business != "" {
		return Fingerprint(m.Business), nil
	}
	return foreignOwner, nil
}

// LoadManifest reads the manifest of a published bundle.
func (b *Builder) LoadManifest(slug string) (*models.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(b.cfg.BuildsDir, slug, models.FileManifest))
	if err != nil {
		return nil, err
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest for %s: %w", slug, err)
	}
	return &m, nil
}

// ListManifests returns the manifests of all published bundles sorted by slug.
// Directories without a readable manifest are skipped.
func (b *Builder) ListManifests() ([]models.Manifest, error) {
	entries, err := os.ReadDir(b.cfg.BuildsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Manifest{}, nil
		}
		return nil, err
	}
	out := make([]models.Manifest, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		m, err := b.LoadManifest(e.Name())
		if err != nil {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (b *Builder) finish(outcome string, cost float64) {
	if b.observe != nil {
		b.observe(outcome, cost)
	}
}

// checkPage rejects generated output that is not a usable page for name.
func checkPage(page, name string) error {
	if strings.TrimSpace(page) == "" {
		return errors.New("empty page")
	}
	lower := strings.ToLower(page)
	if !strings.Contains(lower, "<html") {
		return errors.New("page has no <html> element")
	}
	if !strings.Contains(lower, "</html>") {
		return errors.New("page is not closed with </html>")
	}
	if !strings.Contains(normalizeName(html.UnescapeString(page)), normalizeName(name)) {
		return fmt.Errorf("page does not mention %q", name)
	}
	return nil
}
