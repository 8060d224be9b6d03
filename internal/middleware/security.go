package middleware

import (
	"net/http"
	"sync"
	"time"
)

// HTTPSRedirect redirects plain HTTP requests to HTTPS (server.force_https).
// X-Forwarded-Proto is only honoured when trustProxy is set.
func HTTPSRedirect(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secure := r.TLS != nil || (trustProxy && r.Header.Get("X-Forwarded-Proto") == "https")
			if !secure {
				http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusMovedPermanently)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// camera and geolocation are needed by the clock-in page
		w.Header().Set("Permissions-Policy", "camera=(self), geolocation=(self)")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is a fixed-window, per-key, in-memory limiter
type RateLimiter struct {
	requests map[string]*rateLimitEntry
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once

	trustProxy bool
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter allows limit requests per client IP in each window.
// Proxy headers only pick the IP when trustProxy is set.
// Call Stop to end the cleanup goroutine.
func NewRateLimiter(limit int, window time.Duration, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		requests:   make(map[string]*rateLimitEntry),
		limit:      limit,
		window:     window,
		now:        time.Now,
		stop:       make(chan struct{}),
		trustProxy: trustProxy,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, entry := range rl.requests {
				if now.After(entry.resetTime) {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Allow checks if a request from the given key (usually IP) is allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.requests[key]
	if !exists || now.After(entry.resetTime) {
		rl.requests[key] = &rateLimitEntry{count: 1, resetTime: now.Add(rl.window)}
		return true
	}
	if entry.count >= rl.limit {
		return false
	}
	entry.count++
	return true
}

// Middleware applies the limiter keyed by client IP
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(getClientIP(r, rl.trustProxy)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
