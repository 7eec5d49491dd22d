// Package postgres implements the Resonate storage interfaces on
// PostgreSQL via lib/pq. When the pgvector extension is installed, taste
// vectors are additionally stored in a native vector column; otherwise a
// little-endian BYTEA encoding is used alone.
package postgres

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Store implements storage.ProfileStore and storage.HistoryStore using
// PostgreSQL.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
	dimension         int
}

// NewStore connects to PostgreSQL, probes for the pgvector extension and
// creates the schema. dimension is the embedding dimension used for the
// vector column when pgvector is present.
func NewStore(dsn string, dimension int) (*Store, error) {
	if dimension <= 0 {
		dimension = 384
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, dimension: dimension}
	s.pgvectorAvailable = s.probePgvector()
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// probePgvector attempts to enable the pgvector extension. Failure is
// not fatal; the store falls back to BYTEA-only vectors.
func (s *Store) probePgvector() bool {
	if _, err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension unavailable, using BYTEA vectors: %v", err)
		return false
	}
	return true
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS taste_profiles (
			user_id      TEXT PRIMARY KEY,
			taste_vector BYTEA NOT NULL,
			seed_songs   JSONB NOT NULL,
			song_count   INTEGER NOT NULL,
			version      BIGINT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS listening_history (
			id               BIGSERIAL PRIMARY KEY,
			user_id          TEXT NOT NULL,
			song_key         TEXT NOT NULL,
			title            TEXT NOT NULL,
			artists          JSONB NOT NULL,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			completed        BOOLEAN NOT NULL DEFAULT FALSE,
			source           TEXT NOT NULL DEFAULT '',
			played_at        TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user_time
			ON listening_history(user_id, played_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_songs (
			user_id     TEXT NOT NULL,
			song_key    TEXT NOT NULL,
			play_count  INTEGER NOT NULL DEFAULT 0,
			last_played TIMESTAMPTZ,
			PRIMARY KEY (user_id, song_key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if s.pgvectorAvailable {
		stmt := fmt.Sprintf(
			`ALTER TABLE taste_profiles ADD COLUMN IF NOT EXISTS taste_vec vector(%d)`,
			s.dimension)
		if _, err := s.db.Exec(stmt); err != nil {
			log.Printf("postgres: failed to add vector column, using BYTEA only: %v", err)
			s.pgvectorAvailable = false
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
