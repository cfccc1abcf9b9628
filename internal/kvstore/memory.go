package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Useful for tests and for sessions that
// should not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates an empty Memory store. A nil clock means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]Entry), now: now}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	// Copy so the caller can't mutate what we hold.
	return Entry{Value: append([]byte(nil), e.Value...), StoredAt: e.StoredAt}, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{Value: append([]byte(nil), value...), StoredAt: m.now()}
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, suffix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if strings.HasSuffix(k, suffix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
