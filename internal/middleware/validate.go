package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/health-companion/internal/validation"
)

// maxBodyBytes caps how much of a request body Validate will read.
const maxBodyBytes = 1 << 20

// Validate decodes the JSON body against schema. Failures get a 400 and never
// reach next; successes carry the sanitized values in the request context
// for validation.FromContext.
//
// Rejections are routine client input, so they log at Debug.
func Validate(schema validation.Schema, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, err := validation.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), schema)
			if err != nil {
				logger.Debug("request failed validation",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)

				body := errorBody{Error: "validation_error", Message: err.Error()}
				var fields validation.FieldErrors
				if errors.As(err, &fields) {
					body.Message = "request failed validation"
					body.Fields = fields
				}
				writeJSON(w, http.StatusBadRequest, body)
				return
			}

			next.ServeHTTP(w, r.WithContext(validation.WithValues(r.Context(), values)))
		})
	}
}
