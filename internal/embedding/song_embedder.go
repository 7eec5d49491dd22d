package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/resonate/pkg/types"
)

// DefaultCacheSize is the number of song embeddings kept in the
// in-process cache.
const DefaultCacheSize = 4096

// SongEmbedder embeds songs rather than raw text, memoizing results by
// the deterministic song cache key. Entries are immutable once written;
// the LRU bound is the only eviction policy.
//
// The cache makes the embedding function a pure memoized mapping:
// identical normalized song metadata always hits regardless of call
// order.
type SongEmbedder struct {
	embedder Embedder
	cache    *lru.Cache[string, []float32]
}

// NewSongEmbedder wraps an Embedder with a song-keyed LRU cache of the
// given size (DefaultCacheSize when size <= 0).
func NewSongEmbedder(embedder Embedder, size int) (*SongEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &SongEmbedder{embedder: embedder, cache: cache}, nil
}

// Dimension returns the underlying model dimension.
func (s *SongEmbedder) Dimension() int { return s.embedder.Dimension() }

// EmbedSong returns the embedding vector for one song, from cache when
// possible.
func (s *SongEmbedder) EmbedSong(ctx context.Context, song types.SongRef) ([]float32, error) {
	key := SongCacheKey(song)
	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := s.embedder.Embed(ctx, SongText(song))
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, vec)
	return vec, nil
}

// EmbedSongs returns one vector per song, in input order. Cached songs
// are served locally; the misses are embedded in a single batch call.
func (s *SongEmbedder) EmbedSongs(ctx context.Context, songs []types.SongRef) ([][]float32, error) {
	if len(songs) == 0 {
		return nil, fmt.Errorf("embed songs: no songs")
	}

	vectors := make([][]float32, len(songs))
	var missTexts []string
	var missIdx []int
	var missKeys []string

	for i, song := range songs {
		key := SongCacheKey(song)
		if vec, ok := s.cache.Get(key); ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, SongText(song))
		missIdx = append(missIdx, i)
		missKeys = append(missKeys, key)
	}

	if len(missTexts) > 0 {
		embedded, err := s.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range embedded {
			vectors[missIdx[j]] = vec
			s.cache.Add(missKeys[j], vec)
		}
	}

	return vectors, nil
}

// CacheLen reports how many embeddings are currently cached.
func (s *SongEmbedder) CacheLen() int { return s.cache.Len() }
