// Package history keeps a short "recently viewed" list per user.
//
// Each identity gets its own Store, persisted in the kvstore under
// "<identity>-resource-history". A Registry hands out stores lazily and drops
// them on logout so one user's history never leaks into another's session.
//
//	Registry
//	├── "alice" → Store (≤ 10 items, newest first)
//	└── "bob"   → Store
//
// Persisted lists expire 30 days after they were last written. Expiry is
// checked on read and by a sweep that runs whenever a new Store is built.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sakif/health-companion/internal/kvstore"
	"github.com/sakif/health-companion/internal/model"
)

const (
	// MaxItems is how many entries a history list keeps.
	MaxItems = 10

	// Retention is how long a persisted list lives after its last write.
	Retention = 30 * 24 * time.Hour

	// KeySuffix ends every persisted history key.
	KeySuffix = "-resource-history"

	// Anonymous is the identity used when a store is requested without one.
	Anonymous = "anonymous"
)

// Key returns the kvstore key for identity's history.
func Key(identity string) string {
	return identity + KeySuffix
}

// Store is one identity's view history.
type Store struct {
	mu       sync.Mutex
	identity string
	items    []model.HistoryItem
	storedAt time.Time
	// closed is set when the Registry drops this store; writes after that
	// would resurrect a deleted blob.
	closed bool

	kv     kvstore.Store
	now    func() time.Time
	logger *slog.Logger
}

// load builds a Store from whatever is persisted for identity. Expired or
// unreadable blobs are deleted and the store starts empty.
func load(ctx context.Context, identity string, kv kvstore.Store, now func() time.Time, logger *slog.Logger) (*Store, error) {
	s := &Store{
		identity: identity,
		kv:       kv,
		now:      now,
		logger:   logger.With(slog.String("identity", identity)),
	}

	entry, err := kv.Get(ctx, Key(identity))
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("history: loading %s: %w", identity, err)
	}

	if expired(entry.StoredAt, now()) {
		s.logger.Debug("dropping expired history")
		return s, s.removeBlob(ctx)
	}

	var items []model.HistoryItem
	if err := json.Unmarshal(entry.Value, &items); err != nil {
		s.logger.Warn("dropping unreadable history", slog.String("error", err.Error()))
		return s, s.removeBlob(ctx)
	}
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	s.items = items
	s.storedAt = entry.StoredAt
	return s, nil
}

// Identity returns the identity this store belongs to.
func (s *Store) Identity() string {
	return s.identity
}

// Add records that res was viewed. An existing entry for the same id moves to
// the front with a fresh timestamp; the oldest entry falls off past MaxItems.
// On a store the Registry has already evicted, Add does nothing.
func (s *Store) Add(ctx context.Context, res model.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("ignoring view on evicted history", slog.String("resource", res.ID))
		return nil
	}
	s.expireLocked()

	item := model.HistoryItem{
		ID:          res.ID,
		Title:       res.Title,
		Description: res.Description,
		ImageURL:    res.ImageURL,
		SourceURL:   res.SourceURL,
		ViewedAt:    s.now(),
	}

	items := make([]model.HistoryItem, 0, MaxItems)
	items = append(items, item)
	for _, h := range s.items {
		if h.ID != item.ID && len(items) < MaxItems {
			items = append(items, h)
		}
	}

	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("history: encoding %s: %w", s.identity, err)
	}
	if err := s.kv.Set(ctx, Key(s.identity), blob); err != nil {
		return fmt.Errorf("history: saving %s: %w", s.identity, err)
	}
	s.items = items
	s.storedAt = s.now()
	return nil
}

// Items returns the history, most recent first.
func (s *Store) Items() []model.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return slices.Clone(s.items)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return len(s.items)
}

// Clear empties the list and deletes its persisted blob.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.storedAt = time.Time{}
	return s.removeBlob(ctx)
}

// expireLocked forgets the in-memory list once the persisted copy would have
// expired. The blob itself is left for the next sweep. Caller holds mu.
func (s *Store) expireLocked() {
	if len(s.items) > 0 && expired(s.storedAt, s.now()) {
		s.items = nil
		s.storedAt = time.Time{}
	}
}

// close marks the store evicted. Later Adds are dropped.
func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
}

func (s *Store) removeBlob(ctx context.Context) error {
	if err := s.kv.Remove(ctx, Key(s.identity)); err != nil {
		return fmt.Errorf("history: removing %s: %w", s.identity, err)
	}
	return nil
}

func expired(storedAt, now time.Time) bool {
	return now.After(storedAt.Add(Retention))
}
