// Package search retrieves song candidates from external catalog APIs.
//
// The recommendation engine consumes it through the narrow Provider
// interface; concrete clients exist for the iTunes Search API (primary)
// and the Last.fm track search (fallback). All calls are rate limited
// and bounded by timeouts so a slow source degrades to zero candidates
// instead of stalling a request.
package search

import (
	"context"

	"github.com/scrypster/resonate/pkg/types"
)

// Result is a single retrieved candidate: the song plus optional display
// metadata from the source catalog.
type Result struct {
	Song  types.SongRef
	Album string
	Image string
}

// Provider searches an external catalog for songs matching a free-text
// query (title, artist or genre).
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// DedupeResults filters results to unique identity keys, keeping first
// occurrence, and drops entries without a usable title.
func DedupeResults(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Song.Title == "" {
			continue
		}
		key := r.Song.IdentityKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
