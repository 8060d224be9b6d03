package middleware

import (
	"net/http"

	"attendance-backend/internal/config"

	"github.com/rs/cors"
)

// NewCORS builds the CORS wrapper from server.allowed_origins.
// Credentials are allowed so the session cookie survives cross-origin calls.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler
}
