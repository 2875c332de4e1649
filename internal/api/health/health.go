// Package health provides health check functionality for API components.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is operational but with issues.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger is an interface for components that can be pinged.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// WritableDir reports an error unless a file can be created in dir.
func WritableDir(dir string) Pinger {
	return PingerFunc(func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("%s is not writable: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	})
}

// Checker performs health checks for a set of named components.
type Checker struct {
	components map[string]Pinger
	startTime  time.Time
	version    string
	timeout    time.Duration
	mu         sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker(version string, components map[string]Pinger) *Checker {
	return &Checker{
		components: components,
		startTime:  time.Now(),
		version:    version,
		timeout:    5 * time.Second,
	}
}

// SetTimeout sets the timeout for health checks.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Check performs all health checks and returns the aggregated response.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	c.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)

	components := make(map[string]ComponentStatus, len(names))
	overallStatus := StatusHealthy
	for _, name := range names {
		status := checkComponent(checkCtx, c.components[name])
		components[name] = status
		if status.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if status.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return &Response{
		Status:     overallStatus,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

func checkComponent(ctx context.Context, p Pinger) ComponentStatus {
	if p == nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: "not configured"}
	}
	if err := p.Ping(ctx); err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return ComponentStatus{Status: StatusHealthy, Message: "ok"}
}

// Handler returns an HTTP handler for health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")

		switch response.Status {
		case StatusHealthy, StatusDegraded:
			w.WriteHeader(http.StatusOK)
		case StatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(response)
	}
}
