package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the requester set by Authenticate.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	if !ok || !id.Authenticated() {
		return auth.Identity{}, false
	}
	return id, true
}

// UserLookup is satisfied by repositories.UserRepository.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type AuthMiddleware struct {
	jwt        *auth.JWTManager
	cookieName string
	users      UserLookup
}

// NewAuthMiddleware verifies session tokens. When users is non-nil every
// session is checked against the stored account, so deactivated or deleted
// users lose access before their token expires.
func NewAuthMiddleware(jwt *auth.JWTManager, cookieName string, users UserLookup) *AuthMiddleware {
	if cookieName == "" {
		cookieName = "session"
	}
	return &AuthMiddleware{jwt: jwt, cookieName: cookieName, users: users}
}

func (m *AuthMiddleware) CookieName() string { return m.cookieName }

func (m *AuthMiddleware) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(m.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate stores the session identity in the request context when a
// valid token is present. Requests without one pass through anonymous.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := m.token(r); tok != "" {
			if claims, err := m.jwt.Verify(tok); err == nil {
				if id, ok := m.current(r.Context(), claims.Identity()); ok {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// current refreshes id from the stored account. Name and role follow the
// account, so admin changes apply on the next request.
func (m *AuthMiddleware) current(ctx context.Context, id auth.Identity) (auth.Identity, bool) {
	if m.users == nil {
		return id, true
	}
	u, err := m.users.GetByID(ctx, id.ID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			log.Printf("[Auth] Session lookup for %s failed: %v", id.ID, err)
		}
		return auth.Identity{}, false
	}
	if u == nil || !u.Active {
		return auth.Identity{}, false
	}
	return auth.Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: auth.RoleFor(u.IsAdmin)}, true
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and staff with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if !id.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
