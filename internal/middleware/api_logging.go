package middleware

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"attendance-backend/internal/metrics"

	"github.com/gorilla/mux"
)

// RequestMetrics records every request in Prometheus and logs slow or failed ones
type RequestMetrics struct {
	metrics    *metrics.Metrics
	slow       time.Duration
	trustProxy bool
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func NewRequestMetrics(m *metrics.Metrics, trustProxy bool) *RequestMetrics {
	return &RequestMetrics{metrics: m, slow: time.Second, trustProxy: trustProxy}
}

func (m *RequestMetrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)

		route := routeTemplate(r)
		m.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		if wrapped.statusCode >= http.StatusInternalServerError || duration > m.slow {
			log.Printf("[HTTP] %s %s -> %d in %v (%s)", r.Method, route, wrapped.statusCode, duration, getClientIP(r, m.trustProxy))
		}
	})
}

// routeTemplate keeps label cardinality bounded: path variables stay as
// {placeholders} and unmatched paths collapse to one label.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// shouldSkipLogging returns true for paths that shouldn't be recorded
func shouldSkipLogging(path string) bool {
	skipPaths := []string{
		"/uploads/",
		"/health",
		"/metrics",
		"/favicon.ico",
	}
	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}
	return false
}

// getClientIP returns the peer address. Proxy headers are only consulted
// when trustProxy is set, since any client can send them.
func getClientIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return remoteIP(r)
	}

	if cfip := r.Header.Get("CF-Connecting-IP"); cfip != "" {
		return strings.TrimSpace(cfip)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
