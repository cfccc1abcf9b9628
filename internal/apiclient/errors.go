package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/savedstore"
)

// APIError is a non-2xx answer from the server, decoded from its standard
// error body.
type APIError struct {
	Status     int                 `json:"-"`
	Type       string              `json:"error"`
	Message    string              `json:"message"`
	Code       string              `json:"code,omitempty"`
	Fields     map[string][]string `json:"fields,omitempty"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apiclient: server returned %d", e.Status)
	}
	return fmt.Sprintf("apiclient: server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the response onto the savedstore error kinds so stores can
// classify failures with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == apperror.CodeAlreadySaved:
		return savedstore.ErrAlreadySaved
	case e.Status == http.StatusNotFound:
		return savedstore.ErrRemoteNotFound
	case e.Status == http.StatusTooManyRequests, e.Status >= 500:
		return savedstore.ErrTransient
	}
	return nil
}

// readError builds an APIError from resp. Bodies that aren't our JSON shape
// still produce an error carrying the status.
func readError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	apiErr.Status = resp.StatusCode

	if apiErr.RetryAfter == 0 {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = secs
		}
	}
	return apiErr
}
