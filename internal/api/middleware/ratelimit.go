package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apierrors "github.com/buildswift/orchestrator/internal/api/errors"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// RateLimiter throttles requests per client address. Idle clients are
// forgotten after clientIdleTTL.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
	logger   *slog.Logger
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with burst.
func NewRateLimiter(requestsPerSecond float64, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
	}
	// Re-adding refreshes the idle TTL.
	rl.limiters.Add(key, limiter)
	return limiter
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.getLimiter(key).Allow() {
			requestID := middleware.GetReqID(r.Context())
			rl.logger.Warn("rate limit exceeded",
				"client", key,
				"path", r.URL.Path,
				"request_id", requestID,
			)
			apierrors.WriteErrorWithRequestID(w, apierrors.NewRateLimitedError("Too many requests, slow down"), requestID)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
