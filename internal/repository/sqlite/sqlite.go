// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the server builds
// without cgo. database/sql gives us the connection pool:
//
//  1. sql.Open("sqlite", path)          → pool
//  2. ExecContext / QueryRowContext      → statements
//  3. rows.Scan(&field1, &field2)        → results
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/health.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database, for tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default in SQLite; saved_items relies on ON DELETE CASCADE.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// email is stored lower-cased, so the UNIQUE constraint is
	// case-insensitive in practice.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// seq preserves insertion order for listing.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_items (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind       TEXT NOT NULL,
			item_id    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, kind, item_id)
		);
		CREATE INDEX IF NOT EXISTS idx_saved_items_user_kind ON saved_items(user_id, kind);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_items table: %w", err)
	}

	return nil
}
