package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoUserID writes back the user id RequireAuth stored in the context.
var echoUserID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromContext(r.Context())
	_, _ = w.Write([]byte(id))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, err := ts.Generate("user-42")
	require.NoError(t, err)

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{
			name:     "bearer header",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantCode: http.StatusOK,
			wantBody: "user-42",
		},
		{
			name:     "lower-case scheme",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) },
			wantCode: http.StatusOK,
			wantBody: "user-42",
		},
		{
			name:     "cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) },
			wantCode: http.StatusOK,
			wantBody: "user-42",
		},
		{
			name:     "no credentials",
			setup:    func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong scheme",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "garbage token",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "bad header wins over good cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer nope")
				r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
			},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			RequireAuth(ts)(echoUserID).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
			}
		})
	}
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := UserIDFromContext(req.Context())
	assert.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(req.Context(), ""))
	assert.False(t, ok, "an empty id is not a user")
}
