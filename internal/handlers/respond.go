package handlers

import (
	"encoding/json"
	"log"
	"mime"
	"net/http"
	"strings"

	"attendance-backend/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an operation error to its HTTP status. Backend errors
// keep the store's message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindBackend {
		log.Printf("[HTTP] %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, kind.HTTPStatus(), map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// decodeRequest fills dst from a JSON body, or from url-encoded or multipart
// form fields using fields to map form names onto dst's string fields.
func decodeRequest(r *http.Request, dst interface{}, fields map[string]*string) error {
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return apperr.Validation("Invalid request body")
		}
		return nil
	}
	if err := parseForm(r); err != nil {
		return err
	}
	for name, ptr := range fields {
		*ptr = r.FormValue(name)
	}
	return nil
}

const maxUploadSize = 10 << 20

func parseForm(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return apperr.Validation("Invalid form data")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return apperr.Validation("Invalid form data")
	}
	return nil
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"success": false,
		"error":   "Page not found",
	})
}
