package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLite)(nil)

// SQLite persists entries in a single table of a SQLite file.
//
// dbPath examples:
//   - "data/companion.db" → file-based, survives restarts
//   - ":memory:"          → in-memory, for tests
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (or creates) the database at dbPath and runs migrations.
// A nil clock means time.Now.
func OpenSQLite(dbPath string, now func() time.Time) (*SQLite, error) {
	if now == nil {
		now = time.Now
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening database: %w", err)
	}

	// ":memory:" gives every pooled connection its own database, so keep one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: setting WAL mode: %w", err)
	}

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key       TEXT PRIMARY KEY,
			value     BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: creating kv table: %w", err)
	}

	return &SQLite{conn: conn, now: now}, nil
}

// Close closes the underlying connection pool.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, error) {
	var (
		value    []byte
		storedAt int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT value, stored_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("kvstore: getting %s: %w", key, err)
	}

	// stored_at is unix milliseconds.
	return Entry{Value: value, StoredAt: time.UnixMilli(storedAt)}, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO kv (key, value, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		key, value, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("kvstore: setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvstore: removing %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context, suffix string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("kvstore: listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("kvstore: scanning key: %w", err)
		}
		// Filtered in Go: LIKE would treat "_" and "%" in keys as wildcards.
		if strings.HasSuffix(k, suffix) {
			keys = append(keys, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kvstore: iterating keys: %w", err)
	}
	return keys, nil
}
