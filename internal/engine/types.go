// Package engine implements the taste-vector lifecycle and the
// candidate scoring and ranking pipeline.
//
// ProfileService owns profile creation, incremental updates and the
// process-wide profile cache. Recommender owns candidate generation,
// scoring, diversity filtering and result assembly. Both consume their
// collaborators (embedding, search, storage, links) through narrow
// interfaces and are constructed explicitly at startup; there are no
// package-level singletons.
package engine

import (
	"errors"
	"time"
)

// ErrValidation indicates empty or malformed input on a profile
// operation, e.g. analyzing taste with no seed songs.
var ErrValidation = errors.New("validation failed")

// DefaultBlendWeight is the default weight given to new songs when
// blending them into an existing taste vector.
const DefaultBlendWeight = 0.3

// Candidate-generation caps. The pool is bounded to roughly 3x the
// requested limit across all strategies.
const (
	maxArtistSeeds    = 5  // seed songs used for per-artist retrieval
	artistQueryLimit  = 15 // results per artist query
	maxTitleSeeds     = 3  // seed songs used for per-title retrieval
	titleQueryLimit   = 10 // results per title query
	maxFilterGenres   = 3  // explicit genre-filter terms queried
	genreQueryLimit   = 20 // results per explicit genre query
	maxFallbackGenres = 2  // fallback genre terms queried
	fallbackLimit     = 10 // results per fallback genre query
)

// Scoring weights and adjustment factors.
const (
	similarityWeight       = 0.9
	genreMatchWeight       = 0.1
	moodBoostFactor        = 0.1  // net mood effect is boost*factor, max ±5%
	positiveFeedbackFactor = 0.15 // boost factor for positively rated songs
	negativeFeedbackFactor = 0.2  // penalty factor for skipped songs
)

// Diversity filter tunables.
const (
	maxPerArtist             = 2
	consecutiveArtistPenalty = 0.15
	repeatGenrePenalty       = 0.05
	genreSignatureWindow     = 10
)

// Feedback derivation bounds: the listening window the feedback table is
// rebuilt from on every recommendation call.
const (
	feedbackHistoryLimit  = 100
	feedbackHistoryWindow = 30 * 24 * time.Hour
)

// RecommendOptions carries the optional inputs of a recommendation
// request.
type RecommendOptions struct {
	// Context holds free-form request context. The "mood" key, when
	// present, activates the contextual keyword boost.
	Context map[string]string

	// GenreFilter restricts and prioritizes retrieval and scoring by
	// genre.
	GenreFilter []string
}

// Mood returns the mood from the request context, if any.
func (o RecommendOptions) Mood() string {
	return o.Context["mood"]
}
