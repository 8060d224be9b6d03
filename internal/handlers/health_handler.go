package handlers

import (
	"net/http"

	"attendance-backend/internal/health"
)

type HealthHandler struct {
	Checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{Checker: checker}
}

func statusCode(status string) int {
	if status == "unhealthy" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (h *HealthHandler) Basic(w http.ResponseWriter, r *http.Request) {
	s := h.Checker.CheckBasic(r.Context())
	writeJSON(w, statusCode(s.Status), s)
}

func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	s := h.Checker.CheckDetailed(r.Context())
	writeJSON(w, statusCode(s.Status), s)
}
