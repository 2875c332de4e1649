// Package config provides environment-based configuration for the orchestrator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	// Server configuration
	APIHost         string
	APIPort         int
	PublicBaseURL   string
	ShutdownTimeout time.Duration

	// Filesystem layout
	DataDir      string
	BuildsDir    string
	TemplatesDir string

	// SiteBaseDomain is appended to the slug when a profile has no website.
	SiteBaseDomain string

	// Admin endpoints
	AdminJWTSecret string
	AdminJWTExpiry time.Duration

	Stripe     StripeConfig
	Generation GenerationConfig
	Social     SocialConfig
	Dedupe     DedupeConfig

	// Checkout rate limiting, per client address.
	CheckoutRateLimit float64
	CheckoutBurst     int

	// Logging
	LogLevel  string
	LogFormat string
}

// StripeConfig holds payment processor credentials and the package catalog.
type StripeConfig struct {
	PublishableKey string
	SecretKey      string
	WebhookSecret  string
	// Prices maps package name to the processor price id.
	Prices map[string]string
}

// GenerationConfig holds generative content API settings.
type GenerationConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// SocialConfig holds default vendor credentials used when a publish request
// does not carry its own.
type SocialConfig struct {
	VendorTimeout        time.Duration
	YouTubeUploadTimeout time.Duration
	GraphBaseURL         string
	InstagramBaseURL     string
	XBaseURL             string
	TikTokBaseURL        string
	XBearerToken         string
	XConsumerKey         string
	XConsumerSecret      string
	XAccessToken         string
	XAccessTokenSecret   string
	YouTubeAccessToken   string
	TikTokAccessToken    string
}

// DedupeConfig bounds the processed-event set.
type DedupeConfig struct {
	Retention time.Duration
	Capacity  int
}

// Package names offered at checkout.
const (
	PackagePremium      = "premium"
	PackageStandard     = "standard"
	PackageAllInclusive = "all_inclusive"
)

// Load reads configuration from environment variables, after loading a .env
// file when one exists. Mandatory credentials are validated.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := LoadWithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForBuild is Load for the offline site builder: only the generation
// settings are required.
func LoadForBuild() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := LoadWithDefaults()
	if cfg.Generation.APIKey == "" {
		return nil, fmt.Errorf("missing required environment variables: ANTHROPIC_API_KEY")
	}
	if cfg.Generation.MaxTokens <= 0 || cfg.Generation.Timeout <= 0 {
		return nil, fmt.Errorf("ANTHROPIC_MAX_TOKENS and GENERATION_TIMEOUT must be positive")
	}
	return cfg, nil
}

// loadDotEnv loads the file if present. Variables already set in the process
// environment win over the file.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Validate checks that required configuration values are set. All missing
// keys are reported at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Stripe.PublishableKey == "" {
		missing = append(missing, "STRIPE_PUBLISHABLE_KEY")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.Generation.APIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.APIPort)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be positive")
	}
	if c.Generation.Timeout <= 0 || c.Social.VendorTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT and VENDOR_TIMEOUT must be positive")
	}
	if c.Social.YouTubeUploadTimeout <= 0 {
		return fmt.Errorf("YOUTUBE_UPLOAD_TIMEOUT must be positive")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return &Config{
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 5001),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		DataDir:         getEnv("DATA_DIR", "data"),
		BuildsDir:       getEnv("BUILDS_DIR", "builds"),
		TemplatesDir:    getEnv("TEMPLATES_DIR", ""),
		SiteBaseDomain:  getEnv("SITE_BASE_DOMAIN", "buildswift.site"),
		AdminJWTSecret:  getEnv("ADMIN_JWT_SECRET", ""),
		AdminJWTExpiry:  getDurationEnv("ADMIN_JWT_EXPIRY", 24*time.Hour),
		Stripe: StripeConfig{
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			SecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Prices:         loadPrices(),
		},
		Generation: GenerationConfig{
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:   getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			Model:     getEnv("ANTHROPIC_MODEL", "claude-opus-4-1"),
			MaxTokens: getIntEnv("ANTHROPIC_MAX_TOKENS", 4000),
			Timeout:   getDurationEnv("GENERATION_TIMEOUT", 120*time.Second),
		},
		Social: SocialConfig{
			VendorTimeout:        getDurationEnv("VENDOR_TIMEOUT", 15*time.Second),
			YouTubeUploadTimeout: getDurationEnv("YOUTUBE_UPLOAD_TIMEOUT", 10*time.Minute),
			GraphBaseURL:         getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),
			InstagramBaseURL:     getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com"),
			XBaseURL:             getEnv("X_API_URL", "https://api.twitter.com"),
			TikTokBaseURL:        getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com"),
			XBearerToken:         getEnv("X_BEARER_TOKEN", ""),
			XConsumerKey:         getEnv("X_CONSUMER_KEY", ""),
			XConsumerSecret:      getEnv("X_CONSUMER_SECRET", ""),
			XAccessToken:         getEnv("X_ACCESS_TOKEN", ""),
			XAccessTokenSecret:   getEnv("X_ACCESS_TOKEN_SECRET", ""),
			YouTubeAccessToken:   getEnv("YOUTUBE_ACCESS_TOKEN", ""),
			TikTokAccessToken:    getEnv("TIKTOK_USER_ACCESS_TOKEN", ""),
		},
		Dedupe: DedupeConfig{
			Retention: getDurationEnv("DEDUPE_RETENTION", 72*time.Hour),
			Capacity:  getIntEnv("DEDUPE_CAPACITY", 10000),
		},
		CheckoutRateLimit: getFloatEnv("CHECKOUT_RATE_LIMIT", 2),
		CheckoutBurst:     getIntEnv("CHECKOUT_RATE_BURST", 5),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}
}

// loadPrices reads the package catalog. Packages without a price are not offered.
func loadPrices() map[string]string {
	prices := make(map[string]string)
	for pkg, key := range map[string]string{
		PackagePremium:      "STRIPE_PRICE_PREMIUM",
		PackageStandard:     "STRIPE_PRICE_STANDARD",
		PackageAllInclusive: "STRIPE_PRICE_ALL_INCLUSIVE",
	} {
		if price := getEnv(key, ""); price != "" {
			prices[pkg] = price
		}
	}
	return prices
}

// Addr returns the listen address of the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
