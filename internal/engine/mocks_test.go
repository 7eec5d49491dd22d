package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scrypster/resonate/internal/embedding"
	"github.com/scrypster/resonate/internal/search"
	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

// memProfileStore is an in-memory ProfileStore with the same optimistic
// versioning contract as the real backends.
type memProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*types.TasteProfile
	saves    int

	// onLoad, when set, runs after a load snapshot is taken but before it
	// is returned, so tests can interleave other operations mid-read.
	onLoad func()
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: make(map[string]*types.TasteProfile)}
}

func (m *memProfileStore) SaveProfile(_ context.Context, profile *types.TasteProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++

	existing, ok := m.profiles[profile.UserID]
	if profile.Version <= 1 {
		if ok {
			return storage.ErrVersionConflict
		}
	} else {
		if !ok {
			return storage.ErrNotFound
		}
		if existing.Version != profile.Version-1 {
			return storage.ErrVersionConflict
		}
	}
	m.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (m *memProfileStore) LoadProfile(_ context.Context, userID string) (*types.TasteProfile, error) {
	m.mu.Lock()
	profile, ok := m.profiles[userID]
	var snapshot *types.TasteProfile
	if ok {
		snapshot = profile.Clone()
	}
	m.mu.Unlock()

	if m.onLoad != nil {
		m.onLoad()
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	return snapshot, nil
}

func (m *memProfileStore) DeleteProfile(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.profiles, userID)
	return nil
}

// stubEmbedder returns fixed vectors per song text, falling back to a
// default vector for unmapped texts. A nil mapped vector simulates a
// per-text model failure surfacing as a zero vector downstream.
type stubEmbedder struct {
	vectors    map[string][]float32
	defaultVec []float32
	err        error
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		vectors:    make(map[string][]float32),
		defaultVec: []float32{1, 0},
	}
}

func (s *stubEmbedder) set(song types.SongRef, vec []float32) {
	s.vectors[embedding.SongText(song)] = vec
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return s.defaultVec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return len(s.defaultVec) }

func newTestSongEmbedder(backend embedding.Embedder) *embedding.SongEmbedder {
	se, err := embedding.NewSongEmbedder(backend, 64)
	if err != nil {
		panic(fmt.Sprintf("song embedder: %v", err))
	}
	return se
}

// stubSearcher serves canned results per query term and records the
// queries it received.
type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]search.Result
	errs    map[string]error
	queries []string
}

func newStubSearcher() *stubSearcher {
	return &stubSearcher{
		results: make(map[string][]search.Result),
		errs:    make(map[string]error),
	}
}

func (s *stubSearcher) Search(_ context.Context, query string, limit int) ([]search.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	results := s.results[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *stubSearcher) queried() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// stubHistory serves a fixed event list.
type stubHistory struct {
	events []types.PlayEvent
	err    error
}

func (s *stubHistory) UserHistory(_ context.Context, _ string, _ int, _ time.Duration) ([]types.PlayEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

// stubResolver resolves every song to a fixed video ID.
type stubResolver struct {
	videoID string
	err     error
}

func (s *stubResolver) ResolveVideoID(_ context.Context, _ types.SongRef) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.videoID, nil
}

func seedSong(title, artist string, genres ...string) types.SongRef {
	return types.SongRef{Title: title, Artists: []string{artist}, Genre: genres}
}

func candidate(title, artist string, genres ...string) search.Result {
	return search.Result{Song: seedSong(title, artist, genres...)}
}
