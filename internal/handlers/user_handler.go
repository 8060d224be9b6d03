package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	Service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{Service: service}
}

// CreateUser lets an admin add a staff or admin account
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	var req models.CreateUserRequest
	if err := decodeRequest(r, &req, map[string]*string{
		"name":      &req.Name,
		"email":     &req.Email,
		"password":  &req.Password,
		"user_type": &req.UserType,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Service.CreateByAdmin(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	users, err := h.Service.ListUsers(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}

// SetActive activates or deactivates an account
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	target := mux.Vars(r)["id"]

	var req models.SetActiveRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, apperr.Validation("Invalid request body"))
			return
		}
	} else {
		if err := parseForm(r); err != nil {
			writeError(w, r, err)
			return
		}
		active, err := strconv.ParseBool(r.FormValue("active"))
		if err != nil {
			writeError(w, r, apperr.Validation("Invalid active flag"))
			return
		}
		req.Active = active
	}

	user, err := h.Service.SetActive(r.Context(), id, target, req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}
