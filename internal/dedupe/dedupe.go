// Package dedupe tracks which payment events have already been fulfilled and
// collapses concurrent deliveries of the same event onto one execution.
package dedupe

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Defaults for the processed set.
const (
	DefaultCapacity  = 10000
	DefaultRetention = 72 * time.Hour
)

// Set is a bounded, expiring set of processed identifiers.
type Set struct {
	// mu makes multi-key checks and marks atomic with respect to each other.
	mu     sync.Mutex
	seen   *expirable.LRU[string, time.Time]
	flight singleflight.Group
	now    func() time.Time
}

// New creates a Set holding at most capacity identifiers, each forgotten
// after retention.
func New(capacity int, retention time.Duration) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Set{
		seen: expirable.NewLRU[string, time.Time](capacity, nil, retention),
		now:  time.Now,
	}
}

// Seen reports whether any of keys has been marked. Empty keys are ignored.
func (s *Set) Seen(keys ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.seen.Get(k); ok {
			return true
		}
	}
	return false
}

// Mark records keys as processed. Empty keys are ignored.
func (s *Set) Mark(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	for _, k := range keys {
		if k != "" {
			s.seen.Add(k, at)
		}
	}
}

// Len returns the number of live identifiers.
func (s *Set) Len() int {
	return s.seen.Len()
}

// Do runs fn once for all concurrent callers sharing key. Callers that
// joined an in-flight execution get its result with shared set to true.
func (s *Set) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	return s.flight.Do(key, fn)
}
