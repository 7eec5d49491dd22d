// Package sqlite implements the Resonate storage interfaces on SQLite
// via the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Schema creates the tables used by the SQLite backend.
const Schema = `
CREATE TABLE IF NOT EXISTS taste_profiles (
	user_id      TEXT PRIMARY KEY,
	taste_vector BLOB NOT NULL,
	seed_songs   TEXT NOT NULL,
	song_count   INTEGER NOT NULL,
	version      INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS listening_history (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id          TEXT NOT NULL,
	song_key         TEXT NOT NULL,
	title            TEXT NOT NULL,
	artists          TEXT NOT NULL,
	duration_seconds REAL NOT NULL DEFAULT 0,
	completed        INTEGER NOT NULL DEFAULT 0,
	source           TEXT NOT NULL DEFAULT '',
	played_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_user_time
	ON listening_history(user_id, played_at DESC);

CREATE TABLE IF NOT EXISTS user_songs (
	user_id     TEXT NOT NULL,
	song_key    TEXT NOT NULL,
	play_count  INTEGER NOT NULL DEFAULT 0,
	last_played TIMESTAMP,
	PRIMARY KEY (user_id, song_key)
);
`

// Store implements storage.ProfileStore and storage.HistoryStore using
// SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at the given DSN, configures WAL mode
// and creates the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open
	// connection serialises writes and avoids SQLITE_BUSY under
	// concurrent load; WAL mode lets readers proceed without blocking
	// the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of returning an immediate SQLITE_BUSY error when the
	// connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
