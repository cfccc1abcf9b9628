// Package companion wires the client-side pieces together: session, API
// client, saved-item stores and view history, all sharing one kvstore.
//
//	Session ──TokenSource──▶ apiclient.Transport ──▶ server
//	   │                          │ 401
//	   │◀──────── Logout ─────────┘
//	   │
//	   ├─OnLogin──▶ history.SetActive(identity)
//	   └─OnLogout─▶ history.Evict(identity), Tips.Reset(), Resources.Reset()
package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/health-companion/internal/apiclient"
	"github.com/sakif/health-companion/internal/history"
	"github.com/sakif/health-companion/internal/kvstore"
	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/savedstore"
	"github.com/sakif/health-companion/internal/session"
)

// Config holds everything needed to build a Companion.
type Config struct {
	// BaseURL of the API server, e.g. "http://localhost:8080".
	BaseURL string

	// DBPath is the SQLite file for local state. Empty keeps state in
	// memory. Ignored when Storage is set.
	DBPath  string
	Storage kvstore.Store

	Timeout       time.Duration
	BaseTransport http.RoundTripper
	Notifier      savedstore.Notifier
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Companion is the client-side state of one app instance.
type Companion struct {
	Session   *session.Session
	Client    *apiclient.Client
	Tips      *savedstore.Store[model.Tip]
	Resources *savedstore.Store[model.Resource]
	History   *history.Registry

	kv     kvstore.Store
	close  func() error
	logger *slog.Logger
}

// New builds a Companion and restores the saved-item mirrors from storage.
func New(ctx context.Context, cfg Config) (*Companion, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("companion: base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = savedstore.SlogNotifier{Logger: logger}
	}

	c := &Companion{logger: logger, close: func() error { return nil }}

	switch {
	case cfg.Storage != nil:
		c.kv = cfg.Storage
	case cfg.DBPath != "":
		db, err := kvstore.OpenSQLite(cfg.DBPath, clock)
		if err != nil {
			return nil, fmt.Errorf("companion: opening local storage: %w", err)
		}
		c.kv = db
		c.close = db.Close
	default:
		c.kv = kvstore.NewMemory(clock)
	}

	clientOpts := []apiclient.Option{apiclient.WithLogger(logger)}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, apiclient.WithTimeout(cfg.Timeout))
	}
	if cfg.BaseTransport != nil {
		clientOpts = append(clientOpts, apiclient.WithBaseTransport(cfg.BaseTransport))
	}

	c.Session = session.New()
	c.Client = apiclient.New(cfg.BaseURL, c.Session, clientOpts...)

	c.Tips = savedstore.New(savedstore.Config[model.Tip]{
		Name:     model.KindTips,
		Label:    "Tip",
		Remote:   c.Client.Saved(model.KindTips),
		Storage:  c.kv,
		Notifier: notifier,
		Placeholder: func(id string) model.Tip {
			return model.Tip{ID: id, Title: "Saved tip"}
		},
		Logger: logger,
	})
	c.Resources = savedstore.New(savedstore.Config[model.Resource]{
		Name:     model.KindResources,
		Label:    "Resource",
		Remote:   c.Client.Saved(model.KindResources),
		Storage:  c.kv,
		Notifier: notifier,
		Placeholder: func(id string) model.Resource {
			return model.Resource{ID: id, Title: "Saved resource"}
		},
		Logger: logger,
	})

	c.History = history.NewRegistry(c.kv,
		history.WithClock(clock),
		history.WithLogger(logger),
	)

	c.Session.OnLogin(c.History.SetActive)
	c.Session.OnLogout(c.onLogout)

	if err := c.Tips.Hydrate(ctx); err != nil {
		logger.Warn("could not restore saved tips", slog.String("error", err.Error()))
	}
	if err := c.Resources.Hydrate(ctx); err != nil {
		logger.Warn("could not restore saved resources", slog.String("error", err.Error()))
	}

	return c, nil
}

// Login authenticates against the server, activates the session and loads
// the user's saved items.
func (c *Companion) Login(ctx context.Context, email, password string) (*model.User, error) {
	res, err := c.Client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("companion: logging in: %w", err)
	}

	c.Session.Login(res.User.ID, res.Token, res.ExpiresAt)
	c.logger.Info("logged in", slog.String("userID", res.User.ID))

	c.Refresh(ctx)
	return &res.User, nil
}

// Logout ends the session. Per-user state is torn down by the logout
// observer, the same path a 401 from the server takes.
func (c *Companion) Logout() {
	c.Session.Logout()
}

// Refresh reloads both saved-item collections from the server.
func (c *Companion) Refresh(ctx context.Context) {
	c.Tips.FetchAll(ctx)
	c.Resources.FetchAll(ctx)
}

// ViewResource records that the logged-in user opened res.
func (c *Companion) ViewResource(ctx context.Context, res model.Resource) error {
	return c.History.AddToHistory(ctx, res)
}

// Close releases local storage.
func (c *Companion) Close() error {
	return c.close()
}

func (c *Companion) onLogout(identity string) {
	ctx := context.Background()

	if err := c.History.Evict(ctx, identity); err != nil {
		c.logger.Warn("could not evict history",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
	}
	c.Tips.Reset(ctx)
	c.Resources.Reset(ctx)
	c.logger.Info("logged out", slog.String("userID", identity))
}
