package handlers

import (
	"net/http"

	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/services"
)

type AttendanceHandler struct {
	Service *services.AttendanceService
}

func NewAttendanceHandler(service *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{Service: service}
}

// ClockIn records a staff login activity
func (h *AttendanceHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, models.ActivityLogin)
}

// ClockOut records a staff logout activity
func (h *AttendanceHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, models.ActivityLogout)
}

func (h *AttendanceHandler) record(w http.ResponseWriter, r *http.Request, action string) {
	id, _ := middleware.IdentityFromContext(r.Context())

	if err := parseForm(r); err != nil {
		writeError(w, r, err)
		return
	}

	in := services.RecordInput{
		Location: r.FormValue("location"),
		Lat:      r.FormValue("lat"),
		Lng:      r.FormValue("lng"),
	}

	// photo is optional
	if r.MultipartForm != nil {
		if file, header, err := r.FormFile("photo"); err == nil {
			defer file.Close()
			if header.Filename != "" && header.Size > 0 {
				in.Photo = file
				in.PhotoSize = header.Size
			}
		}
	}

	activity, err := h.Service.Record(r.Context(), id, action, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"activity": activity,
	})
}
