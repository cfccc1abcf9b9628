// Package savedstore keeps a user's saved items (tips, resources) in memory
// and lets the UI treat save/unsave as instantaneous.
//
// OPTIMISTIC MUTATION FLOW:
//
//	Idle ──Add/Remove──▶ Pending ──remote ok──────▶ Committed (snapshot dropped, success toast)
//	                        │
//	                        └──remote failed──▶ RolledBack (snapshot restored, failure toast)
//
// The local collections change before the remote call is made. If the server
// refuses, the pre-mutation snapshot is restored. "Already in the desired
// state" answers (saving something already saved, deleting something already
// gone) count as success and raise no toast.
//
// Mutations are not queued: two quick calls for the same id race, and the
// last network response to settle decides the final state.
//
// One Store type serves every item kind; the kind-specific bits (remote
// endpoint, storage key, labels, placeholder payload) come from Config.
package savedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/sakif/health-companion/internal/kvstore"
)

var (
	// ErrNotSaved is returned by Remove when the id isn't in the collection.
	// It signals a caller bug, so it's kept apart from network failures.
	ErrNotSaved = errors.New("savedstore: item is not saved")

	// ErrAlreadySaved is what a Remote returns when Create hits an id the
	// server already has.
	ErrAlreadySaved = errors.New("savedstore: item already saved")

	// ErrRemoteNotFound is what a Remote returns when Delete hits an id the
	// server doesn't have.
	ErrRemoteNotFound = errors.New("savedstore: item not found on server")

	// ErrTransient marks backend errors worth retrying later (5xx, network).
	ErrTransient = errors.New("savedstore: transient backend error")

	// ErrRolledBack wraps the remote error after a failed mutation was undone.
	ErrRolledBack = errors.New("savedstore: mutation rolled back")
)

// Remote is the server-side authority for one item kind.
type Remote interface {
	List(ctx context.Context) ([]string, error)
	Create(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Config describes one item kind.
type Config[T any] struct {
	// Name identifies the kind ("tips"); it also names the storage key.
	Name string
	// Label is used in notifications ("Tip saved"). Defaults to Name.
	Label string

	Remote Remote

	// Storage mirrors the collections across restarts. Optional.
	Storage kvstore.Store
	// Notifier receives fire-and-forget toasts. Optional.
	Notifier Notifier
	// Placeholder builds the payload for ids the server reports that we
	// have no details for yet. Defaults to the zero value.
	Placeholder func(id string) T

	Logger *slog.Logger
}

// Store is the optimistic cache for one item kind.
//
// ids and data are index-aligned: data[i] is the payload of ids[i], and no
// id appears twice. Every method keeps that invariant under mu.
//
// gen counts Resets. A mutation or fetch that started before a Reset must not
// write its result back afterwards.
type Store[T any] struct {
	mu      sync.Mutex
	ids     []string
	data    []T
	loading bool
	gen     uint64

	name        string
	label       string
	remote      Remote
	storage     kvstore.Store
	notifier    Notifier
	placeholder func(id string) T
	logger      *slog.Logger
}

// New creates an empty Store.
func New[T any](cfg Config[T]) *Store[T] {
	s := &Store[T]{
		name:        cfg.Name,
		label:       cfg.Label,
		remote:      cfg.Remote,
		storage:     cfg.Storage,
		notifier:    cfg.Notifier,
		placeholder: cfg.Placeholder,
		logger:      cfg.Logger,
	}
	if s.label == "" {
		s.label = cfg.Name
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Notification) {})
	}
	if s.placeholder == nil {
		s.placeholder = func(string) T {
			var zero T
			return zero
		}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With(slog.String("store", s.name))
	return s
}

// StorageKey is the kvstore key the collections are mirrored under.
func (s *Store[T]) StorageKey() string {
	return "saved-" + s.name + "-storage"
}

// =========================================================================
// MUTATIONS
// =========================================================================

// Add saves id with payload. Adding an id that is already present is a no-op
// and makes no remote call.
//
// The item is visible to readers before the remote call starts. If the
// server rejects it, the collections are restored to exactly what they were
// before Add and the returned error wraps ErrRolledBack.
func (s *Store[T]) Add(ctx context.Context, id string, payload T) error {
	s.mu.Lock()
	if s.indexOf(id) >= 0 {
		s.mu.Unlock()
		return nil
	}
	m := s.begin()
	s.ids = append(s.ids, id)
	s.data = append(s.data, payload)
	s.persistLocked(ctx)
	s.mu.Unlock()

	err := s.remote.Create(ctx, id)
	switch {
	case err == nil:
		s.notify(Success, fmt.Sprintf("%s saved", s.label))
		return nil
	case isAlreadySaved(err):
		s.logger.Debug("item already saved on server", slog.String("id", id))
		return nil
	}

	m.rollback(ctx)
	s.logger.Warn("save failed, rolled back",
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	s.notify(Failure, fmt.Sprintf("Could not save %s", strings.ToLower(s.label)))
	return fmt.Errorf("%w: adding %s: %w", ErrRolledBack, id, err)
}

// Remove unsaves id.
//
// If id isn't present it returns ErrNotSaved at once, without a remote call.
// Otherwise the item disappears immediately and comes back (in its original
// position) if the server rejects the delete.
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		s.notify(Failure, fmt.Sprintf("%s not found", s.label))
		return fmt.Errorf("%w: %s", ErrNotSaved, id)
	}
	m := s.begin()
	s.ids = slices.Delete(s.ids, idx, idx+1)
	s.data = slices.Delete(s.data, idx, idx+1)
	s.persistLocked(ctx)
	s.mu.Unlock()

	err := s.remote.Delete(ctx, id)
	switch {
	case err == nil:
		s.notify(Success, fmt.Sprintf("%s removed", s.label))
		return nil
	case errors.Is(err, ErrRemoteNotFound):
		s.logger.Debug("item already removed on server", slog.String("id", id))
		return nil
	}

	m.rollback(ctx)
	s.logger.Warn("remove failed, rolled back",
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	s.notify(Failure, fmt.Sprintf("Could not remove %s", strings.ToLower(s.label)))
	return fmt.Errorf("%w: removing %s: %w", ErrRolledBack, id, err)
}

// FetchAll replaces the collections with what the server reports.
//
// It never fails from the caller's point of view: a brand-new user with
// nothing saved and a backend hiccup both end in an empty collection with no
// toast. Payloads already held for ids the server still reports are kept;
// new ids get a placeholder payload.
func (s *Store[T]) FetchAll(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	gen := s.gen
	s.mu.Unlock()

	remoteIDs, err := s.remote.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if s.gen != gen {
		s.logger.Debug("store reset during fetch, discarding result")
		return
	}
	if err != nil {
		if errors.Is(err, ErrTransient) {
			s.logger.Debug("fetch hit a transient backend error", slog.String("error", err.Error()))
		} else {
			s.logger.Warn("fetch failed", slog.String("error", err.Error()))
		}
		s.ids, s.data = nil, nil
		s.persistLocked(ctx)
		return
	}

	known := make(map[string]T, len(s.ids))
	for i, id := range s.ids {
		known[id] = s.data[i]
	}

	ids := make([]string, 0, len(remoteIDs))
	data := make([]T, 0, len(remoteIDs))
	seen := make(map[string]struct{}, len(remoteIDs))
	for _, id := range remoteIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		payload, ok := known[id]
		if !ok {
			payload = s.placeholder(id)
		}
		ids = append(ids, id)
		data = append(data, payload)
	}

	s.ids, s.data = ids, data
	s.persistLocked(ctx)
}

// Reset drops the collections and their mirror, e.g. on logout.
func (s *Store[T]) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids, s.data = nil, nil
	s.gen++
	if s.storage != nil {
		if err := s.storage.Remove(ctx, s.StorageKey()); err != nil {
			s.logger.Warn("failed to remove mirror", slog.String("error", err.Error()))
		}
	}
}

// =========================================================================
// READS
// =========================================================================

// IDs returns a copy of the saved ids in insertion order.
func (s *Store[T]) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// Items returns a copy of the saved payloads, aligned with IDs.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data)
}

// Has reports whether id is saved.
func (s *Store[T]) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

// Get returns the payload saved under id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.data[i], true
	}
	var zero T
	return zero, false
}

// Len returns the number of saved items.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Loading reports whether a FetchAll is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// =========================================================================
// LOCAL MIRROR
// =========================================================================

// mirror is the JSON shape written to storage.
type mirror[T any] struct {
	IDs  []string `json:"ids"`
	Data []T      `json:"data"`
}

// Hydrate loads the mirrored collections written by a previous run. A
// missing or inconsistent mirror leaves the store empty.
func (s *Store[T]) Hydrate(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	entry, err := s.storage.Get(ctx, s.StorageKey())
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("savedstore: reading mirror: %w", err)
	}

	var m mirror[T]
	if err := json.Unmarshal(entry.Value, &m); err != nil {
		s.logger.Warn("discarding unreadable mirror", slog.String("error", err.Error()))
		return nil
	}
	if !consistent(m.IDs, len(m.Data)) {
		s.logger.Warn("discarding inconsistent mirror",
			slog.Int("ids", len(m.IDs)),
			slog.Int("data", len(m.Data)),
		)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids, s.data = m.IDs, m.Data
	return nil
}

// persistLocked writes the current collections to storage. Storage failures
// are logged and never undo an in-memory change. Caller holds mu.
func (s *Store[T]) persistLocked(ctx context.Context) {
	if s.storage == nil {
		return
	}

	blob, err := json.Marshal(mirror[T]{IDs: s.ids, Data: s.data})
	if err == nil {
		err = s.storage.Set(ctx, s.StorageKey(), blob)
	}
	if err != nil {
		s.logger.Warn("failed to mirror saved items", slog.String("error", err.Error()))
	}
}

// =========================================================================
// HELPERS
// =========================================================================

// indexOf returns the position of id or -1. Caller holds mu.
func (s *Store[T]) indexOf(id string) int {
	return slices.Index(s.ids, id)
}

func consistent(ids []string, dataLen int) bool {
	if len(ids) != dataLen {
		return false
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// isAlreadySaved accepts both the typed error and, for servers that only
// send a message, any error text mentioning "already".
func isAlreadySaved(err error) bool {
	return errors.Is(err, ErrAlreadySaved) ||
		strings.Contains(strings.ToLower(err.Error()), "already")
}

func (s *Store[T]) notify(kind NotificationKind, msg string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("notifier panicked", slog.Any("panic", r))
		}
	}()
	s.notifier.Notify(Notification{Kind: kind, Message: msg})
}
