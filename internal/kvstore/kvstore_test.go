package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

// runStoreContract exercises the Store behaviour every implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T, now func() time.Time) Store) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t, nil)
		_, err := s.Get(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("set then get records timestamp", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
		s := newStore(t, clock.Now)

		require.NoError(t, s.Set(ctx, "alice-resource-history", []byte(`[1,2]`)))

		e, err := s.Get(ctx, "alice-resource-history")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[1,2]`), e.Value)
		assert.True(t, e.StoredAt.Equal(clock.t), "StoredAt = %v, want %v", e.StoredAt, clock.t)
	})

	t.Run("set overwrites and restamps", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		s := newStore(t, clock.Now)

		require.NoError(t, s.Set(ctx, "k", []byte("one")))
		clock.t = clock.t.Add(time.Hour)
		require.NoError(t, s.Set(ctx, "k", []byte("two")))

		e, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(e.Value))
		assert.True(t, e.StoredAt.Equal(clock.t))
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		s := newStore(t, nil)
		require.NoError(t, s.Set(ctx, "k", []byte("v")))
		require.NoError(t, s.Remove(ctx, "k"))
		require.NoError(t, s.Remove(ctx, "k"))

		_, err := s.Get(ctx, "k")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("keys filters by suffix", func(t *testing.T) {
		s := newStore(t, nil)
		for _, k := range []string{"bob-resource-history", "alice-resource-history", "saved-tips-storage", "a_b%-resource-history"} {
			require.NoError(t, s.Set(ctx, k, []byte("x")))
		}

		got, err := s.Keys(ctx, "-resource-history")
		require.NoError(t, err)
		assert.Equal(t, []string{"a_b%-resource-history", "alice-resource-history", "bob-resource-history"}, got)

		all, err := s.Keys(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestMemory(t *testing.T) {
	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		return NewMemory(now)
	})
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("abc")))

	e, _ := s.Get(ctx, "k")
	e.Value[0] = 'z'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again.Value))
}

func TestSQLite(t *testing.T) {
	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		t.Helper()
		s, err := OpenSQLite(":memory:", now)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "saved-tips-storage", []byte(`{"ids":["t1"]}`)))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	e, err := reopened.Get(ctx, "saved-tips-storage")
	require.NoError(t, err)
	assert.Equal(t, `{"ids":["t1"]}`, string(e.Value))
}
