package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow our
// context values.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the cookie browsers may carry the token in.
const CookieName = "token"

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid token with 401 and stores the
// user id in the context of the ones it lets through.
//
// The token is read from "Authorization: Bearer <jwt>" first, then from the
// "token" cookie.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="health-companion"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns ("", false) for anonymous requests.
//
//	userID, ok := auth.UserIDFromContext(r.Context())
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", errNoToken
	}
	return tokens.Validate(cookie.Value)
}
