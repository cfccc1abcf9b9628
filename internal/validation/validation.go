// Package validation runs declarative per-field rule lists against decoded
// request bodies.
//
// HOW IT FITS TOGETHER:
//
//	Schema{                          // field name → ordered rules
//	    "email":    {Required("email"), Email("email")},
//	    "password": {Required("password"), PasswordStrength("password")},
//	}
//
// Validate runs EVERY rule of every field and collects every failing message,
// so a weak short password reports both problems at once. If nothing fails,
// the caller gets the payload back with string values sanitized. If anything
// fails, the caller gets a FieldErrors map containing only the failing fields.
//
// Schemas and rules hold no state, so one Schema value can be shared by every
// request that hits a route.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/sanitize"
)

// Rule is one named check. Validate reports whether value passes; Message is
// what the caller sees when it does not.
type Rule struct {
	Validate func(value any) bool
	Message  string
}

// Schema maps a field name to the rules that run against it, in order.
type Schema map[string][]Rule

// Values holds the sanitized payload of a request that passed validation.
type Values map[string]any

// String returns the named value when it is a string, "" otherwise.
func (v Values) String(field string) string {
	s, _ := v[field].(string)
	return s
}

// FieldErrors maps each failed field to its failure messages in rule order.
// Fields without failures are never present.
//
// It unwraps to apperror.ErrValidation so handlers can treat it like any
// other validation failure.
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[f], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e FieldErrors) Unwrap() error {
	return apperror.ErrValidation
}

// malformedMessage is the single message returned when the body can't be decoded.
const malformedMessage = "invalid request body"

// Validate runs schema against payload.
//
// On success it returns the schema's fields that are present in payload, with
// string values passed through sanitize.Sanitize. Fields in payload that the
// schema doesn't mention are dropped. On failure it returns a FieldErrors.
func Validate(schema Schema, payload map[string]any) (Values, error) {
	failures := FieldErrors{}
	validated := make(Values, len(schema))

	for field, rules := range schema {
		raw, present := payload[field]

		for _, rule := range rules {
			if !rule.Validate(raw) {
				failures[field] = append(failures[field], rule.Message)
			}
		}

		if _, failed := failures[field]; failed || !present {
			continue
		}

		if s, ok := raw.(string); ok {
			validated[field] = sanitize.Sanitize(s)
		} else {
			validated[field] = raw
		}
	}

	if len(failures) > 0 {
		return nil, failures
	}
	return validated, nil
}

// Decode reads a JSON object from r and validates it against schema.
//
// A body that isn't a JSON object fails atomically with one generic
// validation error; no per-field errors are attempted.
func Decode(r io.Reader, schema Schema) (Values, error) {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, malformed(err)
	}
	if payload == nil {
		return nil, malformed(errors.New("body is null"))
	}
	return Validate(schema, payload)
}

func malformed(cause error) *apperror.AppError {
	return &apperror.AppError{
		Err:     fmt.Errorf("%w: %v", apperror.ErrValidation, cause),
		Message: malformedMessage,
	}
}
