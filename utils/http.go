package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps data returned by the user and health endpoints
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusBadRequest, "bad_request", message, "Bad request", details)
}

// WriteUnauthorized writes a 401 Unauthorized response
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusUnauthorized, "unauthorized", message, "Authentication required", nil)
}

// WriteForbidden writes a 403 Forbidden response
func WriteForbidden(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusForbidden, "forbidden", message, "Access forbidden", nil)
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusNotFound, "not_found", message, "Resource not found", nil)
}

// WriteInternalServerError writes a 500 response. The message never
// carries the underlying cause.
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusInternalServerError, "internal_error", message, "Internal server error", nil)
}

func writeError(w http.ResponseWriter, status int, kind, message, fallback string, details map[string]interface{}) error {
	if message == "" {
		message = fallback
	}
	return WriteJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: message,
		Details: details,
	})
}
