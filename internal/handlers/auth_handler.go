package handlers

import (
	"net/http"
	"time"

	"attendance-backend/internal/auth"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/services"
)

type AuthHandler struct {
	Service      *services.UserService
	JWT          *auth.JWTManager
	CookieName   string
	SecureCookie bool
}

func NewAuthHandler(service *services.UserService, jwt *auth.JWTManager, cookieName string, secure bool) *AuthHandler {
	return &AuthHandler{Service: service, JWT: jwt, CookieName: cookieName, SecureCookie: secure}
}

func (h *AuthHandler) setSession(w http.ResponseWriter, id auth.Identity) error {
	token, err := h.JWT.Generate(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.JWT.TTL()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *AuthHandler) sessionResponse(w http.ResponseWriter, r *http.Request, status int, user *models.User, id auth.Identity) {
	if err := h.setSession(w, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"success":  true,
		"user":     user,
		"redirect": homeFor(id),
	})
}

func homeFor(id auth.Identity) string {
	if id.IsAdmin() {
		return "/admin/dashboard"
	}
	return "/staff/dashboard"
}

// Index sends the requester to their dashboard, or to the login page.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, homeFor(id), http.StatusFound)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	var req models.RegisterRequest
	if err := decodeRequest(r, &req, map[string]*string{
		"name":             &req.Name,
		"email":            &req.Email,
		"password":         &req.Password,
		"confirm_password": &req.ConfirmPassword,
		"user_type":        &req.UserType,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	user, id, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessionResponse(w, r, http.StatusCreated, user, id)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeRequest(r, &req, map[string]*string{
		"email":    &req.Email,
		"password": &req.Password,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	user, id, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessionResponse(w, r, http.StatusOK, user, id)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"redirect": "/login",
	})
}

// LoginPage answers GET /login and GET /register. Signed-in users go home.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, homeFor(id), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": false,
	})
}
