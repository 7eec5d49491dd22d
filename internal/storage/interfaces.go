// Package storage provides composable storage interfaces for Resonate.
//
// The storage layer is designed with small, focused interfaces that can
// be implemented independently and composed as needed. Two backends
// exist: SQLite (modernc.org/sqlite, default) and PostgreSQL (lib/pq,
// with pgvector acceleration for the taste vector when available).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/resonate/pkg/types"
)

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict indicates an optimistic-concurrency save lost
	// the race: the stored profile version no longer matches the version
	// the caller loaded. Callers reload and retry.
	ErrVersionConflict = errors.New("profile version conflict")
)

// ProfileStore persists per-user taste profiles.
//
// Implementations must guarantee per-user atomicity: a profile is either
// fully saved or not saved at all, and a save with a stale Version must
// fail with ErrVersionConflict rather than silently losing an update.
type ProfileStore interface {
	// SaveProfile creates or updates a taste profile.
	//
	// For a new profile (Version 1) a row must not already exist. For an
	// update, the stored version must equal profile.Version-1; otherwise
	// ErrVersionConflict is returned.
	SaveProfile(ctx context.Context, profile *types.TasteProfile) error

	// LoadProfile retrieves the profile for a user, or ErrNotFound.
	LoadProfile(ctx context.Context, userID string) (*types.TasteProfile, error)

	// DeleteProfile removes the profile for a user, or ErrNotFound.
	DeleteProfile(ctx context.Context, userID string) error
}

// HistoryStore records and serves listening history. The recommendation
// engine consumes a bounded recent window of events to derive implicit
// feedback scores.
type HistoryStore interface {
	// RecordPlay appends a play event for a user and maintains the
	// per-(user, song) play counter.
	RecordPlay(ctx context.Context, userID string, event types.PlayEvent) error

	// UserHistory returns the most recent events for a user, newest
	// first, bounded by limit and by the lookback window.
	UserHistory(ctx context.Context, userID string, limit int, window time.Duration) ([]types.PlayEvent, error)
}

// HistoryReader is the narrow read-only view the recommendation engine
// needs. HistoryStore satisfies it.
type HistoryReader interface {
	UserHistory(ctx context.Context, userID string, limit int, window time.Duration) ([]types.PlayEvent, error)
}
