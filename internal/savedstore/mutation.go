package savedstore

import (
	"context"
	"slices"
)

// mutation holds the pre-mutation snapshot of a Store so a failed remote call
// can put the collections back exactly as they were.
type mutation[T any] struct {
	s    *Store[T]
	gen  uint64
	ids  []string
	data []T
}

// begin snapshots the collections. Caller holds s.mu.
func (s *Store[T]) begin() *mutation[T] {
	return &mutation[T]{
		s:    s,
		gen:  s.gen,
		ids:  slices.Clone(s.ids),
		data: slices.Clone(s.data),
	}
}

// rollback restores the snapshot and re-mirrors it. If the store was Reset
// since begin, the snapshot belongs to a previous session and is dropped.
// Takes s.mu.
func (m *mutation[T]) rollback(ctx context.Context) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if m.s.gen != m.gen {
		m.s.logger.Debug("store reset during mutation, snapshot discarded")
		return
	}
	m.s.ids = m.ids
	m.s.data = m.data
	m.s.persistLocked(ctx)
}
