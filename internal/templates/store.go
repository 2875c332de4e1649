// Package templates provides the industry prompt catalog and prompt rendering
// for site generation.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/buildswift/orchestrator/internal/models"
)

//go:embed industries.yaml site_prompt.tmpl
var templateFS embed.FS

// DefaultKey names the fallback template.
const DefaultKey = "default"

// SystemPrompt is sent with every generation request.
const SystemPrompt = "You are an expert web developer. Output ONLY code. No explanations, no markdown fences, no commentary. " +
	"Just the raw HTML/CSS/JS. Ensure the HTML is complete, self-contained, and production-ready."

// Errors for template operations.
var (
	ErrUnknownIndustry      = errors.New("unknown industry")
	ErrTemplateRenderFailed = errors.New("failed to render prompt")
)

// Template is the prompt guidance registered for one industry.
type Template struct {
	Key   string `yaml:"-"`
	Label string `yaml:"label"`
	Hints string `yaml:"hints"`
}

type catalog struct {
	Default    Template            `yaml:"default"`
	Industries map[string]Template `yaml:"industries"`
}

// PromptData is passed to the site prompt template.
type PromptData struct {
	Profile  models.BusinessProfile
	Industry string
	Domain   string
	Template Template
	Colors   models.Colors
	Year     int
}

// Store is a read-only lookup table of industry templates.
type Store struct {
	fallback  Template
	templates map[string]Template
	prompt    *template.Template
}

// NewStore loads the embedded catalog.
func NewStore() (*Store, error) {
	raw, err := templateFS.ReadFile("industries.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read industry catalog: %w", err)
	}

	var cat catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse industry catalog: %w", err)
	}

	s := &Store{
		templates: make(map[string]Template, len(cat.Industries)),
	}
	s.fallback = cat.Default
	s.fallback.Key = DefaultKey

	for key, tmpl := range cat.Industries {
		norm := NormalizeIndustry(key)
		tmpl.Key = norm
		s.templates[norm] = tmpl
	}

	content, err := templateFS.ReadFile("site_prompt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template: %w", err)
	}
	s.prompt, err = template.New("site_prompt").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return s, nil
}

// NewStoreWithOverlay loads the embedded catalog and then registers every
// <industry>.txt file found in dir, replacing the embedded hints.
func NewStoreWithOverlay(dir string) (*Store, error) {
	s, err := NewStore()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return s, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		key := NormalizeIndustry(strings.TrimSuffix(entry.Name(), ".txt"))
		if key == DefaultKey {
			s.fallback.Hints = string(content)
			continue
		}
		tmpl := s.templates[key]
		tmpl.Key = key
		if tmpl.Label == "" {
			tmpl.Label = entry.Name()
		}
		tmpl.Hints = string(content)
		s.templates[key] = tmpl
	}
	return s, nil
}

// NormalizeIndustry lowercases and hyphenates an industry name.
func NormalizeIndustry(industry string) string {
	parts := strings.FieldsFunc(strings.ToLower(industry), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	return strings.Join(parts, "-")
}

// Lookup returns the template registered for industry.
func (s *Store) Lookup(industry string) (Template, error) {
	tmpl, ok := s.templates[NormalizeIndustry(industry)]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownIndustry, industry)
	}
	return tmpl, nil
}

// LookupOrDefault returns the industry template, or the default template and
// false when none is registered.
func (s *Store) LookupOrDefault(industry string) (Template, bool) {
	tmpl, err := s.Lookup(industry)
	if err != nil {
		return s.fallback, false
	}
	return tmpl, true
}

// Default returns the fallback template.
func (s *Store) Default() Template {
	return s.fallback
}

// Industries returns the registered industry keys in sorted order.
func (s *Store) Industries() []string {
	keys := make([]string, 0, len(s.templates))
	for k := range s.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RenderPrompt renders the generation prompt for data. Year defaults to the
// current year.
func (s *Store) RenderPrompt(data PromptData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	if data.Industry == "" {
		data.Industry = data.Profile.Industry
	}

	var buf strings.Builder
	if err := s.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRenderFailed, err)
	}
	return buf.String(), nil
}
