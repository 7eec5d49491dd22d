// Package embedding provides dense vector representations of songs and
// the vector math used by the recommendation engine.
//
// The embedding model itself is an external collaborator reached over
// HTTP (see OllamaEmbedder). This package treats it as an opaque
// deterministic text→vector function and layers caching, batching and
// circuit-breaker protection on top.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/scrypster/resonate/pkg/types"
)

// ErrProvider indicates the embedding backend is fully unreachable
// (transport failure or open circuit). Callers propagate it; it is never
// absorbed the way a single bad candidate is.
var ErrProvider = errors.New("embedding provider unavailable")

// Embedder generates fixed-dimension embedding vectors for text.
// Implementations must be deterministic for identical input text.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension the model produces.
	Dimension() int
}

// SongText renders a song as the canonical text fed to the embedding
// model: `Title by Artist1, Artist2 (genre1, genre2)`. Identical songs
// always render identically, which keeps the model's determinism usable
// for caching.
func SongText(song types.SongRef) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(song.Title))
	b.WriteString(" by ")
	b.WriteString(strings.Join(song.Artists, ", "))
	if len(song.Genre) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(song.Genre, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// SongCacheKey returns the deterministic cache key for a song's
// embedding: a truncated SHA-256 over the normalized title, sorted
// normalized artists and sorted normalized genres. Identical normalized
// input always yields the same key regardless of field order in the
// source record.
func SongCacheKey(song types.SongRef) string {
	artists := make([]string, len(song.Artists))
	for i, a := range song.Artists {
		artists[i] = strings.ToLower(strings.TrimSpace(a))
	}
	sort.Strings(artists)

	genres := make([]string, len(song.Genre))
	for i, g := range song.Genre {
		genres[i] = strings.ToLower(strings.TrimSpace(g))
	}
	sort.Strings(genres)

	content := strings.ToLower(strings.TrimSpace(song.Title)) +
		"||" + strings.Join(artists, "|") +
		"||" + strings.Join(genres, "|")
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// CosineSimilarity computes dot(a,b) / (||a||·||b||). It returns an
// error for mismatched dimensions or a zero-magnitude vector. For any
// non-zero vector v, CosineSimilarity(v, v) == 1.0 within floating
// tolerance.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity: dimension mismatch (%d vs %d)", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("cosine similarity: empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cosine similarity: zero-magnitude vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Mean returns the arithmetic mean of the given vectors. All vectors
// must share the same dimension.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("mean: no vectors")
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("mean: dimension mismatch (%d vs %d)", len(v), dim)
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vectors))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out, nil
}

// Blend combines an existing vector with a new one using a weighted
// average: (1-weight)*existing + weight*next. When the dimensions
// disagree (e.g. the embedding model changed), the new vector wins
// outright.
func Blend(existing, next []float32, weight float64) []float32 {
	if len(existing) == 0 || len(existing) != len(next) {
		return append([]float32(nil), next...)
	}
	out := make([]float32, len(existing))
	for i := range existing {
		out[i] = float32((1-weight)*float64(existing[i]) + weight*float64(next[i]))
	}
	return out
}

// Normalize returns v scaled to unit length. A zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return append([]float32(nil), v...)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
