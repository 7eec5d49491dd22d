package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/resonate/internal/embedding"
	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

// saveRetries bounds the optimistic-concurrency retry loop when a
// concurrent writer (another process) bumps the profile version first.
const saveRetries = 3

// ProfileService manages the taste-profile lifecycle: creation from
// seed songs, weighted incremental updates and cached reads.
//
// Updates for a single user are serialized through a per-user mutex
// within the process and an optimistic version check at the store, so
// two concurrent updates can never produce a lost update. Different
// users never block each other.
type ProfileService struct {
	store    storage.ProfileStore
	embedder *embedding.SongEmbedder

	// userLocks serializes profile mutation per user.
	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	// cache is the process-wide profile cache. Every successful update
	// replaces the entry before returning.
	cacheMu sync.RWMutex
	cache   map[string]*types.TasteProfile
}

// NewProfileService creates a profile service over the given store and
// embedder.
func NewProfileService(store storage.ProfileStore, embedder *embedding.SongEmbedder) *ProfileService {
	return &ProfileService{
		store:     store,
		embedder:  embedder,
		userLocks: make(map[string]*sync.Mutex),
		cache:     make(map[string]*types.TasteProfile),
	}
}

// userLock returns the mutex serializing updates for one user.
func (s *ProfileService) userLock(userID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.userLocks[userID] = mu
	}
	return mu
}

// AnalyzeTaste builds a fresh taste profile from seed songs: embeds the
// deduplicated seeds in one batch, averages their vectors and persists
// the profile. An empty or malformed seed list fails with ErrValidation.
func (s *ProfileService) AnalyzeTaste(ctx context.Context, userID string, seeds []types.SongRef) (*types.AnalysisResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: no seed songs provided", ErrValidation)
	}
	if err := types.ValidateSongs(seeds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	profile, err := s.buildProfile(ctx, userID, seeds)
	if err != nil {
		return nil, err
	}

	// Re-analysis replaces any existing profile wholesale.
	if existing, loadErr := s.store.LoadProfile(ctx, userID); loadErr == nil {
		profile.Version = existing.Version + 1
		profile.CreatedAt = existing.CreatedAt
	} else if !errors.Is(loadErr, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load existing profile: %w", loadErr)
	}

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	s.cacheProfile(profile)

	log.Printf("engine: analyzed taste for user %s from %d songs", userID, profile.SongCount)
	return &types.AnalysisResult{
		UserID:    userID,
		SongCount: profile.SongCount,
		Status:    "complete",
	}, nil
}

// buildProfile embeds the deduplicated songs and assembles a version-1
// profile around their mean vector.
func (s *ProfileService) buildProfile(ctx context.Context, userID string, songs []types.SongRef) (*types.TasteProfile, error) {
	deduped := types.DedupeSongs(songs)

	vectors, err := s.embedder.EmbedSongs(ctx, deduped)
	if err != nil {
		return nil, fmt.Errorf("failed to embed seed songs: %w", err)
	}
	taste, err := embedding.Mean(vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to average seed embeddings: %w", err)
	}

	now := time.Now().UTC()
	return &types.TasteProfile{
		UserID:      userID,
		TasteVector: taste,
		SeedSongs:   deduped,
		SongCount:   len(deduped),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateProfileWithSongs blends new songs into an existing profile.
//
// When no profile exists the songs simply become the new profile. When
// newSongs is empty the existing profile is returned unchanged; this is
// an idempotent no-op, not an error. Otherwise the mean vector of the
// new songs is blended as (1-weight)*existing + weight*new, the song
// list is merged with existing entries winning identity-key ties, and
// the profile is saved with its version incremented.
func (s *ProfileService) UpdateProfileWithSongs(ctx context.Context, userID string, newSongs []types.SongRef, weight float64) (*types.TasteProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("%w: blend weight %v outside [0,1]", ErrValidation, weight)
	}
	if err := types.ValidateSongs(newSongs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; ; attempt++ {
		existing, err := s.store.LoadProfile(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			if len(newSongs) == 0 {
				return nil, fmt.Errorf("%w: no profile and no songs to create one from", ErrValidation)
			}
			profile, err := s.buildProfile(ctx, userID, newSongs)
			if err != nil {
				return nil, err
			}
			if err := s.store.SaveProfile(ctx, profile); err != nil {
				if errors.Is(err, storage.ErrVersionConflict) && attempt < saveRetries {
					continue // another writer created the profile; retry as update
				}
				return nil, fmt.Errorf("failed to save profile: %w", err)
			}
			s.cacheProfile(profile)
			log.Printf("engine: created profile for user %s from %d songs", userID, profile.SongCount)
			return profile.Clone(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}

		if len(newSongs) == 0 {
			s.cacheProfile(existing)
			return existing.Clone(), nil
		}

		updated, err := s.blendProfile(ctx, existing, newSongs, weight)
		if err != nil {
			return nil, err
		}

		if err := s.store.SaveProfile(ctx, updated); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) && attempt < saveRetries {
				continue // reload and reapply on top of the newer version
			}
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
		s.cacheProfile(updated)
		log.Printf("engine: updated profile for user %s (+%d songs, weight %.2f)", userID, len(newSongs), weight)
		return updated.Clone(), nil
	}
}

// blendProfile computes the updated profile without persisting it.
func (s *ProfileService) blendProfile(ctx context.Context, existing *types.TasteProfile, newSongs []types.SongRef, weight float64) (*types.TasteProfile, error) {
	vectors, err := s.embedder.EmbedSongs(ctx, types.DedupeSongs(newSongs))
	if err != nil {
		return nil, fmt.Errorf("failed to embed new songs: %w", err)
	}
	newMean, err := embedding.Mean(vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to average new embeddings: %w", err)
	}

	updated := existing.Clone()
	updated.TasteVector = embedding.Blend(existing.TasteVector, newMean, weight)

	// Merge song lists; existing entries win identity-key ties.
	for _, song := range newSongs {
		if !updated.HasSeed(song) {
			updated.SeedSongs = append(updated.SeedSongs, song)
		}
	}
	updated.SongCount = len(updated.SeedSongs)
	updated.Version = existing.Version + 1
	updated.UpdatedAt = time.Now().UTC()
	return updated, nil
}

// GetTasteProfile returns the user's profile from the cache or the
// store. Returns storage.ErrNotFound when the user was never analyzed.
func (s *ProfileService) GetTasteProfile(ctx context.Context, userID string) (*types.TasteProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	}

	s.cacheMu.RLock()
	cached, ok := s.cache[userID]
	s.cacheMu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	profile, err := s.store.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheProfile(profile)
	return profile.Clone(), nil
}

// DeleteProfile removes the user's profile and drops the cache entry.
func (s *ProfileService) DeleteProfile(ctx context.Context, userID string) error {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	s.cacheMu.Lock()
	delete(s.cache, userID)
	s.cacheMu.Unlock()
	return nil
}

// cacheProfile replaces the cached entry with a private copy. An entry
// is only replaced by an equal or newer version: a slow cold-cache read
// that loaded version N must not clobber the version N+1 a concurrent
// update already cached.
func (s *ProfileService) cacheProfile(profile *types.TasteProfile) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if cached, ok := s.cache[profile.UserID]; ok && cached.Version > profile.Version {
		return
	}
	s.cache[profile.UserID] = profile.Clone()
}
