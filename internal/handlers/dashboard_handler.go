package handlers

import (
	"net/http"
	"net/url"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/services"
)

type DashboardHandler struct {
	Reports  *services.ReportService
	Profiles *services.ProfileService
}

func NewDashboardHandler(reports *services.ReportService, profiles *services.ProfileService) *DashboardHandler {
	return &DashboardHandler{Reports: reports, Profiles: profiles}
}

func (h *DashboardHandler) StaffDashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if id.IsAdmin() {
		http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
		return
	}

	d, err := h.Reports.StaffDashboard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AdminDashboard shows activities for a user and date. Without a date
// parameter it shows today; an empty date shows every date.
func (h *DashboardHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if id.Authenticated() && !id.IsAdmin() {
		http.Redirect(w, r, "/staff/dashboard", http.StatusFound)
		return
	}

	q := r.URL.Query()
	var date *string
	if _, ok := q["date"]; ok {
		v := q.Get("date")
		date = &v
	}

	d, err := h.Reports.AdminDashboard(r.Context(), id, q.Get("user"), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ActivityLogs lists activities newest first. Staff asking for another
// user's log are redirected to their own.
func (h *DashboardHandler) ActivityLogs(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	q := r.URL.Query()

	f := models.ActivityFilter{
		UserID: q.Get("user"),
		Date:   q.Get("date"),
		Type:   q.Get("activity_type"),
	}

	logs, err := h.Reports.ActivityLog(r.Context(), id, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs.Redirect {
		http.Redirect(w, r, activityLogURL(logs.Filter), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func activityLogURL(f models.ActivityFilter) string {
	v := url.Values{}
	v.Set("user", f.UserID)
	if f.Date != "" {
		v.Set("date", f.Date)
	}
	if f.Type != "" {
		v.Set("activity_type", f.Type)
	}
	return "/activity_logs?" + v.Encode()
}

func (h *DashboardHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthenticated("Not authenticated"))
		return
	}

	p, err := h.Profiles.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
