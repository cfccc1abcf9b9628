package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/health-companion/internal/kvstore"
	"github.com/sakif/health-companion/internal/model"
)

// Registry owns every live history Store, at most one per identity, and
// tracks which identity is currently logged in.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	active string

	kv     kvstore.Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty Registry backed by kv.
func NewRegistry(kv kvstore.Store, opts ...Option) *Registry {
	r := &Registry{
		stores: make(map[string]*Store),
		kv:     kv,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the Store for identity, building it on first use. Building a
// store first sweeps expired history for all identities. An empty identity
// maps to Anonymous.
func (r *Registry) Get(ctx context.Context, identity string) (*Store, error) {
	if identity == "" {
		identity = Anonymous
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(ctx, identity)
}

func (r *Registry) getLocked(ctx context.Context, identity string) (*Store, error) {
	if s, ok := r.stores[identity]; ok {
		return s, nil
	}

	if _, err := r.sweepLocked(ctx); err != nil {
		// A failed sweep only delays expiry; the store is still usable.
		r.logger.Warn("history sweep failed", slog.String("error", err.Error()))
	}

	s, err := load(ctx, identity, r.kv, r.now, r.logger)
	if err != nil {
		return nil, err
	}
	r.stores[identity] = s
	return s, nil
}

// Evict drops identity's store and deletes its persisted history. It is a
// no-op for identities with nothing live or stored.
func (r *Registry) Evict(ctx context.Context, identity string) error {
	if identity == "" {
		identity = Anonymous
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[identity]; ok {
		s.close()
	}
	delete(r.stores, identity)
	if r.active == identity {
		r.active = ""
	}
	if err := r.kv.Remove(ctx, Key(identity)); err != nil {
		return fmt.Errorf("history: evicting %s: %w", identity, err)
	}
	return nil
}

// SetActive records the logged-in identity. An empty identity means nobody
// is logged in.
func (r *Registry) SetActive(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = identity
}

// Active returns the logged-in identity, or "" if there is none.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// AddToHistory records a view for the active identity. Without one it does
// nothing: anonymous browsing keeps no history.
func (r *Registry) AddToHistory(ctx context.Context, res model.Resource) error {
	r.mu.Lock()
	if r.active == "" {
		r.mu.Unlock()
		r.logger.Debug("ignoring view without an active identity", slog.String("resource", res.ID))
		return nil
	}
	s, err := r.getLocked(ctx, r.active)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Add(ctx, res)
}

// History returns the active identity's entries, or nil when nobody is
// logged in.
func (r *Registry) History(ctx context.Context) ([]model.HistoryItem, error) {
	r.mu.Lock()
	if r.active == "" {
		r.mu.Unlock()
		return nil, nil
	}
	s, err := r.getLocked(ctx, r.active)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Items(), nil
}

// ClearHistory empties the active identity's history.
func (r *Registry) ClearHistory(ctx context.Context) error {
	r.mu.Lock()
	if r.active == "" {
		r.mu.Unlock()
		return nil
	}
	s, err := r.getLocked(ctx, r.active)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Clear(ctx)
}

// Cleanup discards every live store and every persisted history blob. If an
// identity is active it immediately gets a fresh, empty store.
func (r *Registry) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.stores {
		s.close()
	}
	r.stores = make(map[string]*Store)

	keys, err := r.kv.Keys(ctx, KeySuffix)
	if err != nil {
		return fmt.Errorf("history: listing keys: %w", err)
	}
	var errs []error
	for _, k := range keys {
		if err := r.kv.Remove(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("history: removing %s: %w", k, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if r.active != "" {
		if _, err := r.getLocked(ctx, r.active); err != nil {
			return err
		}
	}
	return nil
}

// Sweep deletes every persisted history blob older than Retention and
// returns how many it removed.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(ctx)
}

func (r *Registry) sweepLocked(ctx context.Context) (int, error) {
	keys, err := r.kv.Keys(ctx, KeySuffix)
	if err != nil {
		return 0, fmt.Errorf("history: listing keys: %w", err)
	}

	now := r.now()
	removed := 0
	for _, k := range keys {
		entry, err := r.kv.Get(ctx, k)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("history: reading %s: %w", k, err)
		}
		if !expired(entry.StoredAt, now) {
			continue
		}
		if err := r.kv.Remove(ctx, k); err != nil {
			return removed, fmt.Errorf("history: removing %s: %w", k, err)
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info("swept expired history", slog.Int("removed", removed))
	}
	return removed, nil
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
