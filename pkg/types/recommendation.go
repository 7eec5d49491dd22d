package types

import "fmt"

// ScoredCandidate is a candidate song with its computed ranking scores.
// It is built fresh from a SongRef plus computed fields and never aliases
// or mutates the retrieval result it came from.
type ScoredCandidate struct {
	// Song is the candidate itself.
	Song SongRef `json:"song"`

	// Album and Image are optional metadata carried through from the
	// search source for display purposes.
	Album string `json:"album,omitempty"`
	Image string `json:"image,omitempty"`

	// Similarity is the raw cosine similarity between the user's taste
	// vector and the candidate embedding, in [0,1] for normalized inputs.
	Similarity float64 `json:"similarity"`

	// GenreMatch is 1 when any requested genre token matches the
	// candidate's genre text, 0 otherwise.
	GenreMatch float64 `json:"genre_match"`

	// FinalScore is the weighted, boosted, feedback-adjusted score,
	// clamped to [0,1]. The diversity filter may lower it with penalties.
	FinalScore float64 `json:"final_score"`

	// Explanation is a short human-readable reason for the match.
	Explanation string `json:"explanation"`
}

// WithPenalty returns a copy with the final score multiplied by
// (1 - penalty). The receiver is not modified.
func (c ScoredCandidate) WithPenalty(penalty float64) ScoredCandidate {
	c.FinalScore *= 1 - penalty
	return c
}

// PlatformLinks holds deep links into external music platforms. Links
// are constructed locally from title and artist; building them never
// requires a network call.
type PlatformLinks struct {
	Spotify      string `json:"spotify"`
	YouTubeMusic string `json:"youtube_music"`
}

// Recommendation is a single ranked result returned to the caller.
type Recommendation struct {
	// ID uniquely identifies this recommendation instance.
	ID string `json:"recommendation_id"`

	// Song is the recommended song with any metadata the search source
	// supplied.
	Song SongRef `json:"song"`

	Album string `json:"album,omitempty"`
	Image string `json:"image,omitempty"`

	// Score is the final ranking score in [0,1].
	Score float64 `json:"score"`

	// Confidence mirrors Score; kept as a separate field so the two can
	// diverge once calibration exists.
	Confidence float64 `json:"confidence"`

	// Explanation describes why the song was recommended.
	Explanation string `json:"explanation"`

	// Links are platform search deep links.
	Links PlatformLinks `json:"platform_links"`

	// VideoID is a playable external reference (YouTube video ID) when
	// resolution succeeded, nil otherwise. Resolution failure never fails
	// the recommendation call.
	VideoID *string `json:"youtube_video_id,omitempty"`
}

// RecommendationResult is the full response of a recommendation call.
// A user with no profile receives an empty successful result with a
// reason, distinguishing "never analyzed" from "zero candidates found".
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	Count           int              `json:"count"`

	// Reason is set when the list is empty for a non-error cause, e.g.
	// "no profile" or "no candidates".
	Reason string `json:"reason,omitempty"`
}

// AnalysisResult summarizes a completed taste analysis.
type AnalysisResult struct {
	UserID    string `json:"user_id"`
	SongCount int    `json:"song_count"`
	Status    string `json:"status"`
}

func (r AnalysisResult) String() string {
	return fmt.Sprintf("user=%s songs=%d status=%s", r.UserID, r.SongCount, r.Status)
}
