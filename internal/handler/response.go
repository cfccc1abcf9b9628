package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error the
// API sends has the same shape:
//
//	{"error": "conflict", "message": "tip t1 is already saved", "code": "already_saved"}
//	{"error": "validation_error", "message": "...", "fields": {"email": ["email is required"]}}
//
// "error" is the coarse type, "code" an optional machine-readable reason and
// "fields" the per-field messages of a failed validation. Clients branch on
// error/code and show message.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/validation"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error      string              `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message    string              `json:"message"` // Human-readable description
	Code       string              `json:"code,omitempty"`
	Fields     map[string][]string `json:"fields,omitempty"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// ERROR MAPPING:
//
//	validation.FieldErrors    → 400 with "fields"
//	apperror.ErrValidation    → 400
//	apperror.ErrUnauthorized  → 401
//	apperror.ErrForbidden     → 403
//	apperror.ErrNotFound      → 404
//	apperror.ErrConflict      → 409
//	apperror.ErrRateLimited   → 429
//	anything else             → 500, details hidden
//
// errors.As walks the whole chain, so services can wrap freely with %w.
func writeError(w http.ResponseWriter, err error) {
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request failed validation",
			Fields:  fields,
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := classify(err)

		resp := ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Code:    appErr.Code,
		}
		if appErr.Field != "" && status == http.StatusBadRequest {
			resp.Fields = map[string][]string{appErr.Field: {appErr.Message}}
		}
		writeJSON(w, status, resp)
		return
	}

	// NEVER expose internal error details: raw messages can carry SQL or
	// file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	}
	return http.StatusInternalServerError, "internal_error"
}
