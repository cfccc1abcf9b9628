// Package kvstore is the durable, namespaced key-value storage used by the
// client-side stores (saved items mirror, per-user view history).
//
// Values are opaque blobs. Every entry also records when it was written, so
// callers can expire data by age without decoding it.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key has no entry.
var ErrNotFound = errors.New("kvstore: key not found")

// Entry is one stored blob and the time it was written.
type Entry struct {
	Value    []byte
	StoredAt time.Time
}

// Store is the storage contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Set writes value under key, stamping it with the store's clock.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists every key ending in suffix ("" lists all keys), sorted.
	Keys(ctx context.Context, suffix string) ([]string, error)
}
