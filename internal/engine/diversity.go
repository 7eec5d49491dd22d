package engine

import (
	"strings"

	"github.com/scrypster/resonate/pkg/types"
)

// applyDiversity runs the greedy diversity pass over candidates already
// sorted by descending score. It is order-dependent by design:
//
//   - an artist already at the per-artist cap is skipped outright;
//   - a candidate repeating the immediately preceding artist keeps its
//     slot but takes a score penalty, without immediate re-sorting;
//   - a candidate repeating a recently seen genre signature takes a
//     smaller penalty; the signature window is cleared once it grows
//     past its bound, so genre pressure resets periodically;
//   - acceptance stops once limit candidates have passed the filter.
//
// Callers re-sort by the possibly penalized scores afterwards.
func applyDiversity(candidates []types.ScoredCandidate, limit int) []types.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = len(candidates)
	}

	accepted := make([]types.ScoredCandidate, 0, limit)
	artistCounts := make(map[string]int)
	lastArtist := ""
	seenGenres := make(map[string]struct{})

	for _, cand := range candidates {
		if len(accepted) >= limit {
			break
		}

		artist := strings.ToLower(cand.Song.PrimaryArtist())
		if artist == "" {
			artist = "unknown"
		}

		if artistCounts[artist] >= maxPerArtist {
			continue
		}

		if lastArtist != "" && lastArtist == artist {
			cand = cand.WithPenalty(consecutiveArtistPenalty)
		}

		genreSig := cand.Song.GenreSignature()
		if _, seen := seenGenres[genreSig]; seen && len(seenGenres) > 3 {
			cand = cand.WithPenalty(repeatGenrePenalty)
		}

		accepted = append(accepted, cand)
		artistCounts[artist]++
		lastArtist = artist
		seenGenres[genreSig] = struct{}{}

		if len(seenGenres) > genreSignatureWindow {
			seenGenres = make(map[string]struct{})
		}
	}

	return accepted
}
