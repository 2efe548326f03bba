package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/smart-inventory-core/internal/accesspoint"
	"github.com/nerrad567/smart-inventory-core/internal/auth"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	"github.com/nerrad567/smart-inventory-core/internal/lighting"
	"github.com/nerrad567/smart-inventory-core/internal/recognition"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = "internal_error"
	ErrCodeDeviceFailure  = "device_failure"
	ErrCodeTooLarge       = "payload_too_large"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps a domain error to its HTTP status. Device and
// storage internals are logged, not returned.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, notFoundMessage(err))
	case errors.Is(err, accesspoint.ErrInvalidInput), errors.Is(err, recognition.ErrInvalidImage):
		writeBadRequest(w, "invalid input")
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "access to this group is not allowed")
	case errors.Is(err, lighting.ErrDeviceFailure):
		s.logger.Warn("device command failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeError(w, http.StatusBadGateway, ErrCodeDeviceFailure, "shelf device did not respond")
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, inventory.ErrDeviceNotFound):
		return "device not found"
	case errors.Is(err, inventory.ErrShelfNotFound):
		return "shelf not found"
	case errors.Is(err, inventory.ErrItemNotFound):
		return "item not found"
	default:
		return "not found"
	}
}
