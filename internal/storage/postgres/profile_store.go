package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

// SaveProfile creates or updates a taste profile with optimistic version
// checking. The vector is always written to the BYTEA column; when
// pgvector is available it is also written to taste_vec.
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
	raw := storage.EncodeVector(profile.TasteVector)

	if s.pgvectorAvailable && len(profile.TasteVector) == s.dimension {
		vec := pgvector.NewVector(profile.TasteVector)
		if profile.Version <= 1 {
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO taste_profiles (user_id, taste_vector, taste_vec, seed_songs, song_count, version, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				profile.UserID, raw, vec, seeds, profile.SongCount, profile.Version,
				profile.CreatedAt, profile.UpdatedAt)
			return s.insertResult(err)
		}

		res, err := s.db.ExecContext(ctx, `
			UPDATE taste_profiles
			SET taste_vector = $1, taste_vec = $2, seed_songs = $3, song_count = $4, version = $5, updated_at = $6
			WHERE user_id = $7 AND version = $8`,
			raw, vec, seeds, profile.SongCount, profile.Version, profile.UpdatedAt,
			profile.UserID, profile.Version-1)
		return s.updateResult(ctx, res, err, profile.UserID)
	}

	if s.pgvectorAvailable {
		log.Printf("postgres: taste vector dimension %d differs from column dimension %d, storing BYTEA only",
			len(profile.TasteVector), s.dimension)
	}

	if profile.Version <= 1 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO taste_profiles (user_id, taste_vector, seed_songs, song_count, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			profile.UserID, raw, seeds, profile.SongCount, profile.Version,
			profile.CreatedAt, profile.UpdatedAt)
		return s.insertResult(err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE taste_profiles
		SET taste_vector = $1, seed_songs = $2, song_count = $3, version = $4, updated_at = $5
		WHERE user_id = $6 AND version = $7`,
		raw, seeds, profile.SongCount, profile.Version, profile.UpdatedAt,
		profile.UserID, profile.Version-1)
	return s.updateResult(ctx, res, err, profile.UserID)
}

func (s *Store) insertResult(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return storage.ErrVersionConflict
	}
	return fmt.Errorf("failed to insert profile: %w", err)
}

func (s *Store) updateResult(ctx context.Context, res sql.Result, err error, userID string) error {
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		var exists int
		row := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM taste_profiles WHERE user_id = $1`, userID)
		if err := row.Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// LoadProfile retrieves the taste profile for a user. The pgvector
// column is preferred when populated; the BYTEA encoding is the
// fallback.
func (s *Store) LoadProfile(ctx context.Context, userID string) (*types.TasteProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	var (
		profile types.TasteProfile
		raw     []byte
		seeds   []byte
	)

	if s.pgvectorAvailable {
		var vec pgvector.Vector
		var hasVec bool
		row := s.db.QueryRowContext(ctx, `
			SELECT user_id, taste_vector, COALESCE(taste_vec, '[]'), taste_vec IS NOT NULL,
			       seed_songs, song_count, version, created_at, updated_at
			FROM taste_profiles WHERE user_id = $1`, userID)
		err := row.Scan(&profile.UserID, &raw, &vec, &hasVec, &seeds,
			&profile.SongCount, &profile.Version, &profile.CreatedAt, &profile.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		if hasVec {
			profile.TasteVector = vec.Slice()
		}
	} else {
		row := s.db.QueryRowContext(ctx, `
			SELECT user_id, taste_vector, seed_songs, song_count, version, created_at, updated_at
			FROM taste_profiles WHERE user_id = $1`, userID)
		err := row.Scan(&profile.UserID, &raw, &seeds,
			&profile.SongCount, &profile.Version, &profile.CreatedAt, &profile.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
	}

	if len(profile.TasteVector) == 0 {
		vec, err := storage.DecodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode taste vector: %w", err)
		}
		profile.TasteVector = vec
	}

	if err := json.Unmarshal(seeds, &profile.SeedSongs); err != nil {
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
		`DELETE FROM taste_profiles WHERE user_id = $1`, userID)
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
