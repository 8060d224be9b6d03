package http

import (
	"net/http"
	"strings"
	"time"

	"attendance-backend/internal/handlers"
	"attendance-backend/internal/live"
	"attendance-backend/internal/metrics"
	"attendance-backend/internal/middleware"

	"github.com/gorilla/mux"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Attendance *handlers.AttendanceHandler
	Dashboard  *handlers.DashboardHandler
	Users      *handlers.UserHandler
	Health     *handlers.HealthHandler
	Live       *live.Hub
	Metrics    *metrics.Metrics
}

// Options are the server settings the router needs.
type Options struct {
	ForceHTTPS bool
	TrustProxy bool

	// UploadsDir is served under UploadsPrefix when photos are stored locally.
	UploadsDir    string
	UploadsPrefix string
}

// Router is the root handler plus the limiters it owns.
type Router struct {
	http.Handler
	limiters []*middleware.RateLimiter
}

// Close stops the rate limiter cleanup goroutines.
func (r *Router) Close() {
	for _, rl := range r.limiters {
		rl.Stop()
	}
}

func NewRouter(h Handlers, authMiddleware *middleware.AuthMiddleware, opts Options) *Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)

	if h.Metrics != nil {
		r.Use(middleware.NewRequestMetrics(h.Metrics, opts.TrustProxy).Handler)
	}
	r.Use(authMiddleware.Authenticate)

	authLimiter := middleware.NewRateLimiter(20, time.Minute, opts.TrustProxy)
	limit := authLimiter.Middleware

	// Public
	r.HandleFunc("/", h.Auth.Index).Methods("GET")
	r.HandleFunc("/login", h.Auth.LoginPage).Methods("GET")
	r.HandleFunc("/register", h.Auth.LoginPage).Methods("GET")
	r.Handle("/login", limit(http.HandlerFunc(h.Auth.Login))).Methods("POST")
	r.Handle("/register", limit(http.HandlerFunc(h.Auth.Register))).Methods("POST")
	r.HandleFunc("/logout", h.Auth.Logout).Methods("GET", "POST")
	r.HandleFunc("/health", h.Health.Basic).Methods("GET")
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler()).Methods("GET")
	}
	if opts.UploadsDir != "" {
		prefix := strings.TrimSuffix(opts.UploadsPrefix, "/")
		if prefix == "" {
			prefix = "/uploads"
		}
		r.PathPrefix(prefix + "/").Handler(
			http.StripPrefix(prefix+"/", http.FileServer(http.Dir(opts.UploadsDir)))).Methods("GET")
	}

	// Any signed-in user
	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuth)
	authed.HandleFunc("/staff/dashboard", h.Dashboard.StaffDashboard).Methods("GET")
	authed.HandleFunc("/staff/login", h.Attendance.ClockIn).Methods("POST")
	authed.HandleFunc("/staff/logout", h.Attendance.ClockOut).Methods("POST")
	authed.HandleFunc("/admin/dashboard", h.Dashboard.AdminDashboard).Methods("GET")
	authed.HandleFunc("/activity_logs", h.Dashboard.ActivityLogs).Methods("GET")
	authed.HandleFunc("/profile", h.Dashboard.Profile).Methods("GET")
	authed.HandleFunc("/admin/users", h.Users.ListUsers).Methods("GET")

	// Admin only
	admin := r.NewRoute().Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/admin/create_user", h.Users.CreateUser).Methods("POST")
	admin.HandleFunc("/admin/users/{id}/active", h.Users.SetActive).Methods("PATCH", "POST")
	admin.HandleFunc("/health/detailed", h.Health.Detailed).Methods("GET")
	if h.Live != nil {
		admin.HandleFunc("/ws/activities", h.Live.ServeWS).Methods("GET")
	}

	var handler http.Handler = r
	handler = middleware.GzipCompression(handler)
	handler = middleware.SecurityHeaders(handler)
	if opts.ForceHTTPS {
		handler = middleware.HTTPSRedirect(opts.TrustProxy)(handler)
	}

	return &Router{Handler: handler, limiters: []*middleware.RateLimiter{authLimiter}}
}
