package httpapi

import (
	"encoding/json"
	"net/http"

	"modelhost/internal/manager"
	"modelhost/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps well-known manager errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case manager.IsUnknownModel(err):
		return http.StatusNotFound
	case manager.IsAlreadyLoading(err):
		return http.StatusConflict
	case manager.IsNoModelLoaded(err):
		return http.StatusConflict
	case manager.IsGenerationInProgress(err):
		return http.StatusTooManyRequests
	case manager.IsEngineUnavailable(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps err to a status and writes the JSON payload.
func writeServiceError(w http.ResponseWriter, err error) int {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("generation_busy")
	}
	writeJSONError(w, status, err.Error())
	return status
}
