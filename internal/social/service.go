package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/config"
)

// Publisher is one platform's publish capability. Validate never makes a
// network call; Publish makes the platform's publish flow once and does not
// retry.
type Publisher interface {
	Platform() Platform
	Validate(post Post) error
	Publish(ctx context.Context, post Post) (*Result, error)
}

// Outcome labels reported to the observer.
const (
	OutcomeSuccess = "success"
)

// Service routes publish requests to the registered publishers and logs
// accepted posts.
type Service struct {
	publishers map[Platform]Publisher
	logs       applog.Store
	logger     *slog.Logger
	observe    func(platform Platform, outcome string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithObserver registers a callback invoked once per publish attempt with
// the platform and either OutcomeSuccess or the failure kind.
func WithObserver(fn func(platform Platform, outcome string)) ServiceOption {
	return func(s *Service) { s.observe = fn }
}

// NewService creates a Service for the given publishers.
func NewService(logs applog.Store, logger *slog.Logger, publishers []Publisher, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		publishers: make(map[Platform]Publisher, len(publishers)),
		logs:       logs,
		logger:     logger,
	}
	for _, p := range publishers {
		s.publishers[p.Platform()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultPublishers builds all five publishers from configuration.
func DefaultPublishers(cfg config.SocialConfig) []Publisher {
	hc := &http.Client{Timeout: cfg.VendorTimeout}
	return []Publisher{
		NewFacebookPublisher(cfg.GraphBaseURL, hc),
		NewInstagramPublisher(cfg.InstagramBaseURL, hc),
		NewXPublisher(cfg.XBaseURL, XCredentials{
			BearerToken:       cfg.XBearerToken,
			ConsumerKey:       cfg.XConsumerKey,
			ConsumerSecret:    cfg.XConsumerSecret,
			AccessToken:       cfg.XAccessToken,
			AccessTokenSecret: cfg.XAccessTokenSecret,
		}, hc),
		NewYouTubePublisher(cfg.YouTubeAccessToken, hc).WithUploadTimeout(cfg.YouTubeUploadTimeout),
		NewTikTokPublisher(cfg.TikTokBaseURL, cfg.TikTokAccessToken, hc),
	}
}

// Platforms returns the registered platforms in canonical order.
func (s *Service) Platforms() []Platform {
	out := make([]Platform, 0, len(s.publishers))
	for _, p := range Platforms {
		if _, ok := s.publishers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Publish validates post for platform, publishes it and appends a
// SocialPostRecord. Invalid payloads are rejected without a network call.
func (s *Service) Publish(ctx context.Context, platform Platform, post Post) (*Result, error) {
	pub, ok := s.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	logger := s.logger.With("platform", platform)

	if err := pub.Validate(post); err != nil {
		s.report(platform, err)
		return nil, err
	}

	res, err := pub.Publish(ctx, post)
	if err != nil {
		logger.Warn("publish failed", "error", err)
		s.report(platform, err)
		return nil, err
	}

	target, preview := describe(platform, post)
	rec := &models.SocialPostRecord{
		Platform: string(platform),
		Target:   target,
		RemoteID: res.RemoteID,
		Preview:  preview,
		Status:   res.Status,
	}
	if err := s.logs.Append(context.WithoutCancel(ctx), models.LogSocialPosts, rec); err != nil {
		// The post is already live, so the result is returned with the error.
		logger.Error("recording social post failed", "remote_id", res.RemoteID, "error", err)
		s.report(platform, err)
		return res, err
	}

	logger.Info("post published", "remote_id", res.RemoteID, "status", res.Status)
	s.report(platform, nil)
	return res, nil
}

func (s *Service) report(platform Platform, err error) {
	if s.observe == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidPayload):
		outcome = "invalid_payload"
	case errors.Is(err, ErrAuthExpired):
		outcome = "auth_expired"
	case errors.Is(err, ErrRateLimited):
		outcome = "rate_limited"
	case errors.Is(err, ErrVendor):
		outcome = "vendor_error"
	default:
		outcome = "storage_error"
	}
	s.observe(platform, outcome)
}
