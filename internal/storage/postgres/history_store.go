package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

// RecordPlay appends a listening-history entry and bumps the per-song
// play counter in the same transaction.
func (s *Store) RecordPlay(ctx context.Context, userID string, event types.PlayEvent) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if event.Title == "" {
		return fmt.Errorf("%w: song title is required", storage.ErrInvalidInput)
	}
	if event.PlayedAt.IsZero() {
		event.PlayedAt = time.Now().UTC()
	}

	songKey := event.Song().FeedbackKey()
	artists, err := json.Marshal(event.Artists)
	if err != nil {
		return fmt.Errorf("failed to marshal artists: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listening_history (user_id, song_key, title, artists, duration_seconds, completed, source, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, songKey, event.Title, artists,
		event.DurationSeconds, event.Completed, event.Source, event.PlayedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_songs (user_id, song_key, play_count, last_played)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, song_key) DO UPDATE SET
			play_count = user_songs.play_count + 1,
			last_played = EXCLUDED.last_played`,
		userID, songKey, event.PlayedAt)
	if err != nil {
		return fmt.Errorf("failed to update play count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit play record: %w", err)
	}
	return nil
}

// UserHistory returns the most recent play events for a user, newest
// first, bounded by limit and the lookback window.
func (s *Store) UserHistory(ctx context.Context, userID string, limit int, window time.Duration) ([]types.PlayEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	cutoff := time.Time{}
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.title, h.artists, h.duration_seconds, h.completed, h.source, h.played_at,
		       COALESCE(us.play_count, 1)
		FROM listening_history h
		LEFT JOIN user_songs us ON us.user_id = h.user_id AND us.song_key = h.song_key
		WHERE h.user_id = $1 AND h.played_at >= $2
		ORDER BY h.played_at DESC
		LIMIT $3`, userID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []types.PlayEvent
	for rows.Next() {
		var (
			event   types.PlayEvent
			artists []byte
		)
		if err := rows.Scan(&event.Title, &artists, &event.DurationSeconds,
			&event.Completed, &event.Source, &event.PlayedAt, &event.PlayCount); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal(artists, &event.Artists); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artists: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return events, nil
}
