package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/autonome/peek/internal/version"
)

// APIError represents a structured error returned by the API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func setVersionHeaders(w http.ResponseWriter) {
	h := version.Headers("")
	w.Header().Set(version.HeaderDatastoreVersion, h.Get(version.HeaderDatastoreVersion))
	w.Header().Set(version.HeaderProtocolVersion, h.Get(version.HeaderProtocolVersion))
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	setVersionHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: APIError{Code: code, Message: message}}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	setVersionHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}
