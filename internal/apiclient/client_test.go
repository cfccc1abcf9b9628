package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/health-companion/internal/savedstore"
	"github.com/sakif/health-companion/internal/session"
)

// fakeAPI is a tiny stand-in for the server's saved-items routes.
type fakeAPI struct {
	mu      sync.Mutex
	saved   []string
	headers []http.Header
	status  int // forced status for every request when non-zero
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, r.Header.Clone())

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":"boom","message":"forced"}`))
		return
	}

	if r.Header.Get("Authorization") != "Bearer good-token" && r.URL.Path != "/api/auth/login" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
		return
	}

	switch {
	case r.URL.Path == "/api/auth/login":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "good-token",
			"user":  map[string]string{"id": "u1", "email": "a@b.co", "name": "A"},
		})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"ids": f.saved})
	case r.Method == http.MethodPost:
		var body struct {
			ItemID string `json:"itemId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range f.saved {
			if id == body.ItemID {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"conflict","message":"tip t1 is already saved","code":"already_saved"}`))
				return
			}
		}
		f.saved = append(f.saved, body.ItemID)
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodDelete:
		id := r.URL.Query().Get("itemId")
		for i, s := range f.saved {
			if s == id {
				f.saved = append(f.saved[:i], f.saved[i+1:]...)
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"tip not saved","code":"not_found"}`))
	}
}

func (f *fakeAPI) Headers() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.headers...)
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sess := session.New()
	return New(srv.URL, sess, WithTimeout(5*time.Second)), sess
}

func TestSavedItems_RoundTrip(t *testing.T) {
	api := &fakeAPI{}
	c, sess := newTestClient(t, api)
	sess.Login("u1", "good-token", time.Time{})
	ctx := context.Background()
	tips := c.Saved("tips")

	ids, err := tips.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	require.NoError(t, tips.Create(ctx, "t1"))
	require.NoError(t, tips.Create(ctx, "t2"))

	ids, err = tips.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)

	require.NoError(t, tips.Delete(ctx, "t1"))
	ids, err = tips.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids)
}

func TestSavedItems_ErrorMapping(t *testing.T) {
	api := &fakeAPI{saved: []string{"t1"}}
	c, sess := newTestClient(t, api)
	sess.Login("u1", "good-token", time.Time{})
	ctx := context.Background()
	tips := c.Saved("tips")

	err := tips.Create(ctx, "t1")
	assert.True(t, errors.Is(err, savedstore.ErrAlreadySaved))

	err = tips.Delete(ctx, "missing")
	assert.True(t, errors.Is(err, savedstore.ErrRemoteNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestSavedItems_ServerErrorIsTransient(t *testing.T) {
	api := &fakeAPI{status: http.StatusBadGateway}
	c, sess := newTestClient(t, api)
	sess.Login("u1", "good-token", time.Time{})

	_, err := c.Saved("tips").List(context.Background())
	assert.True(t, errors.Is(err, savedstore.ErrTransient))
}

func TestSavedItems_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sess := session.New()
	sess.Login("u1", "good-token", time.Time{})
	c := New(url, sess, WithTimeout(time.Second))

	_, err := c.Saved("tips").List(context.Background())
	assert.True(t, errors.Is(err, savedstore.ErrTransient))
}

func TestTransport_AttachesBearerAndRequestID(t *testing.T) {
	api := &fakeAPI{}
	c, sess := newTestClient(t, api)
	sess.Login("u1", "good-token", time.Time{})

	_, err := c.Saved("resources").List(context.Background())
	require.NoError(t, err)

	headers := api.Headers()
	require.Len(t, headers, 1)
	assert.Equal(t, "Bearer good-token", headers[0].Get("Authorization"))
	assert.NotEmpty(t, headers[0].Get(RequestIDHeader))
}

func TestTransport_UnauthorizedLogsOut(t *testing.T) {
	api := &fakeAPI{}
	c, sess := newTestClient(t, api)
	sess.Login("u1", "stale-token", time.Time{})

	var loggedOut string
	sess.OnLogout(func(id string) { loggedOut = id })

	_, err := c.Saved("tips").List(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Empty(t, sess.Identity())
	assert.Equal(t, "u1", loggedOut)
}

func TestClient_NoSessionSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestClient(t, api)

	_, err := c.Saved("tips").List(context.Background())
	assert.True(t, errors.Is(err, session.ErrNoSession))
	assert.False(t, errors.Is(err, savedstore.ErrTransient))
	assert.Empty(t, api.Headers())
}

func TestLogin(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestClient(t, api)

	res, err := c.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "good-token", res.Token)
	assert.Equal(t, "u1", res.User.ID)
	assert.Empty(t, api.Headers()[0].Get("Authorization"))
}

func TestReadError_RetryAfterFromHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "42")
	rec.WriteHeader(http.StatusTooManyRequests)
	_, _ = rec.WriteString("not json")

	apiErr := readError(rec.Result())
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, 42, apiErr.RetryAfter)
	assert.Equal(t, "Too Many Requests", apiErr.Message)
	assert.True(t, errors.Is(apiErr, savedstore.ErrTransient))
}
