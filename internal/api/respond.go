package api

import (
	"encoding/json"
	"net/http"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

// statusFor maps a failure kind onto an HTTP status.
func statusFor(k failure.Kind) int {
	switch k {
	case failure.KindInvalid:
		return http.StatusBadRequest
	case failure.KindBusy:
		return http.StatusConflict
	case failure.KindFetch:
		return http.StatusBadGateway
	case failure.KindDecode:
		return http.StatusUnprocessableEntity
	case failure.KindRecorderUnavailable, failure.KindOverloaded, failure.KindCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// setDownloadHeaders marks the response as a file download. Length and
// Last-Modified are left to http.ServeContent.
func setDownloadHeaders(w http.ResponseWriter, name, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "no-store")
}
