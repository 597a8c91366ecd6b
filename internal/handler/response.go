package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "game not found with id 42"}
//
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "...", "field": "predictions[3].gameId"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/gridiron-picks/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code go out BEFORE the body. Once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and error type.
//
// errors.Is() walks the whole chain, so a service that returns
// fmt.Errorf("grading game 7: %w", apperror.NotFound(...)) still maps to 404.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrLocked):
		return http.StatusConflict, "locked"
	case errors.Is(err, apperror.ErrUpstream), errors.Is(err, apperror.ErrMalformedEvent):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer never knows about status codes; this is the one place
// where apperror sentinels become 4xx/5xx.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := errorStatus(err)
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return
		}
	}

	// Unknown error: never expose the raw message, it may carry SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
