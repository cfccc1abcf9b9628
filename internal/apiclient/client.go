// Package apiclient talks to the health-companion HTTP API.
//
// Authenticated calls go through Transport, which attaches the current bearer
// token and logs the session out on 401. Login and Register use a plain
// client since they run before there is a token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/savedstore"
	"github.com/sakif/health-companion/internal/session"
)

// RequestIDHeader carries a client-generated id the server echoes in its logs.
const RequestIDHeader = "X-Request-Id"

// Session is what the client needs from the session: a token source that can
// also be logged out.
type Session interface {
	oauth2.TokenSource
	Logouter
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	authed  *http.Client
	anon    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	base    http.RoundTripper
	timeout time.Duration
	logger  *slog.Logger
}

// WithBaseTransport sets the RoundTripper requests finally go through.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, sess Session, opts ...Option) *Client {
	o := options{
		base:    http.DefaultTransport,
		timeout: 15 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		authed: &http.Client{
			Transport: NewTransport(sess, sess, o.base),
			Timeout:   o.timeout,
		},
		anon:   &http.Client{Transport: o.base, Timeout: o.timeout},
		logger: o.logger,
	}
}

// =========================================================================
// AUTH
// =========================================================================

// AuthResult is the body of a successful login or registration.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, c.anon, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns a bearer token for it.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, c.anon, http.MethodPost, "/api/auth/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword changes the logged-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, c.authed, http.MethodPost, "/api/auth/password", body, nil)
}

// Me returns the logged-in user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, c.authed, http.MethodGet, "/api/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// =========================================================================
// SAVED ITEMS
// =========================================================================

// SavedItems is the remote for one kind of saved item ("tips", "resources").
type SavedItems struct {
	c    *Client
	kind string
}

var _ savedstore.Remote = (*SavedItems)(nil)

// Saved returns the remote for kind.
func (c *Client) Saved(kind string) *SavedItems {
	return &SavedItems{c: c, kind: kind}
}

type idList struct {
	IDs []string `json:"ids"`
}

func (s *SavedItems) path() string {
	return "/api/saved/" + s.kind
}

// List returns the ids the server has saved, in insertion order.
func (s *SavedItems) List(ctx context.Context) ([]string, error) {
	var out idList
	if err := s.c.do(ctx, s.c.authed, http.MethodGet, s.path(), nil, &out); err != nil {
		return nil, err
	}
	if out.IDs == nil {
		out.IDs = []string{}
	}
	return out.IDs, nil
}

// Create saves id. A duplicate fails with an error matching
// savedstore.ErrAlreadySaved.
func (s *SavedItems) Create(ctx context.Context, id string) error {
	return s.c.do(ctx, s.c.authed, http.MethodPost, s.path(), map[string]string{"itemId": id}, nil)
}

// Delete unsaves id. An unknown id fails with an error matching
// savedstore.ErrRemoteNotFound.
func (s *SavedItems) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, s.c.authed, http.MethodDelete, s.path()+"?itemId="+url.QueryEscape(id), nil, nil)
}

// =========================================================================
// PLUMBING
// =========================================================================

// do sends one JSON request and decodes a JSON response into out (if non-nil).
//
// Network failures come back wrapped in savedstore.ErrTransient, and non-2xx
// answers come back as *APIError. A missing session is returned as-is.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("apiclient: building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := xid.New().String()
	req.Header.Set(RequestIDHeader, reqID)

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return err
		}
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("requestID", reqID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s %s: %w", savedstore.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := readError(resp)
		c.logger.Debug("server rejected request",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("requestID", reqID),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decoding %s %s: %w", method, path, err)
	}
	return nil
}
