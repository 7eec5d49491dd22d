package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sqlite3 "modernc.org/sqlite"

	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

// SQLite extended result codes for the two constraint classes that mean
// another writer inserted the row first.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// SaveProfile creates or updates a taste profile with optimistic version
// checking. A new profile (Version <= 1) must not collide with an
// existing row; an update only succeeds when the stored version is
// exactly one behind the incoming version.
func (s *Store) SaveProfile(ctx context.Context, profile *types.TasteProfile) error {
	if profile == nil {
		return fmt.Errorf("%w: profile is required", storage.ErrInvalidInput)
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	seeds, err := json.Marshal(profile.SeedSongs)
	if err != nil {
		return fmt.Errorf("failed to marshal seed songs: %w", err)
	}
	vec := storage.EncodeVector(profile.TasteVector)

	if profile.Version <= 1 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO taste_profiles (user_id, taste_vector, seed_songs, song_count, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			profile.UserID, vec, string(seeds), profile.SongCount, profile.Version,
			profile.CreatedAt, profile.UpdatedAt)
		if err != nil {
			// A unique-constraint failure means another writer created
			// the profile first.
			if isUniqueViolation(err) {
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("failed to insert profile: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE taste_profiles
		SET taste_vector = ?, seed_songs = ?, song_count = ?, version = ?, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		vec, string(seeds), profile.SongCount, profile.Version, profile.UpdatedAt,
		profile.UserID, profile.Version-1)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		// Either the profile is gone or another writer bumped the
		// version first. Distinguish so callers can retry correctly.
		var exists int
		row := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM taste_profiles WHERE user_id = ?`, profile.UserID)
		if err := row.Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// LoadProfile retrieves the taste profile for a user.
func (s *Store) LoadProfile(ctx context.Context, userID string) (*types.TasteProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	var (
		profile types.TasteProfile
		vec     []byte
		seeds   string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, taste_vector, seed_songs, song_count, version, created_at, updated_at
		FROM taste_profiles WHERE user_id = ?`, userID)
	err := row.Scan(&profile.UserID, &vec, &seeds, &profile.SongCount,
		&profile.Version, &profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	profile.TasteVector, err = storage.DecodeVector(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode taste vector: %w", err)
	}
	if err := json.Unmarshal([]byte(seeds), &profile.SeedSongs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed songs: %w", err)
	}
	return &profile, nil
}

// DeleteProfile removes the profile for a user.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM taste_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether the error is a SQLite unique or
// primary key constraint failure. Other constraint classes (NOT NULL,
// CHECK) are real data errors, not version conflicts.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
