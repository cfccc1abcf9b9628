package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/sakif/health-companion/internal/ratelimit"
)

// RateLimit rejects requests over class's tier with 429 and a Retry-After
// header. Identity is the client host from r.RemoteAddr; put
// chimiddleware.RealIP in front when running behind a trusted proxy.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := clientIdentity(r)

			d := limiter.Check(identity, class)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("rate limit exceeded",
				slog.String("identity", identity),
				slog.String("class", string(class)),
				slog.String("path", r.URL.Path),
				slog.Int("retryAfter", d.RetryAfter),
			)

			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:      "rate_limited",
				Message:    "Too many requests. Please try again later.",
				RetryAfter: d.RetryAfter,
			})
		})
	}
}

// clientIdentity strips the port from RemoteAddr. RealIP may have replaced
// RemoteAddr with a bare IP, which is used as is. Anything unparsable shares
// the ratelimit.UnknownIdentity bucket.
func clientIdentity(r *http.Request) string {
	addr := r.RemoteAddr
	if addr == "" {
		return ratelimit.UnknownIdentity
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if host == "" {
			return ratelimit.UnknownIdentity
		}
		return host
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return ratelimit.UnknownIdentity
}

// errorBody matches handler.ErrorResponse for the fields middleware sends.
type errorBody struct {
	Error      string              `json:"error"`
	Message    string              `json:"message"`
	Fields     map[string][]string `json:"fields,omitempty"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
