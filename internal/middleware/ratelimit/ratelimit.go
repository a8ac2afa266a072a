// Package ratelimit throttles state-changing requests per client. Each
// mutation rewrites the whole expenses file, so a runaway script hammering
// the add or delete endpoint is turned away with 429 instead.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time

	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	allowed  atomic.Int64
	rejected atomic.Int64
}

type window struct {
	start time.Time
	count int
}

// Config holds rate limiter configuration. A Limit of zero or less
// disables limiting.
type Config struct {
	Limit           int
	Period          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 120 changes per minute per client.
func DefaultConfig() Config {
	return Config{
		Limit:           120,
		Period:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and, when enabled, its cleanup goroutine.
func NewLimiter(config Config) *Limiter {
	if config.Period <= 0 {
		config.Period = time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	l := &Limiter{
		clients:     make(map[string]*window),
		limit:       config.Limit,
		period:      config.Period,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if l.Enabled() {
		go l.startCleanup(config.CleanupInterval)
	}
	return l
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool {
	return l.limit > 0
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		l.allowed.Add(1)
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.period {
		l.clients[key] = &window{start: now, count: 1}
		l.allowed.Add(1)
		return true
	}

	w.count++
	if w.count > l.limit {
		l.rejected.Add(1)
		return false
	}
	l.allowed.Add(1)
	return true
}

func (l *Limiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// Cleanup drops windows that have ended and returns how many were removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.clients {
		if now.Sub(w.start) >= l.period {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Stop shuts down the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Metrics for monitoring rate limit behaviour
type Metrics struct {
	Allowed  int64
	Rejected int64
	Clients  int64
}

// GetMetrics returns current rate limiting metrics
func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	clients := int64(len(l.clients))
	l.mu.Unlock()

	return Metrics{
		Allowed:  l.allowed.Load(),
		Rejected: l.rejected.Load(),
		Clients:  clients,
	}
}

// Middleware rejects requests over the limit. key extracts the client
// identity; onLimit writes the rejection, after Retry-After is set.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(l.period.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(key(r)) {
				w.Header().Set("Retry-After", retryAfter)
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Too many changes. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
