package engine

import (
	"fmt"
	"strings"

	"github.com/scrypster/resonate/internal/embedding"
	"github.com/scrypster/resonate/internal/search"
	"github.com/scrypster/resonate/pkg/types"
)

// scoreOutcome is the explicit per-candidate scoring result. Failed
// candidates are collected and filtered out by the caller instead of
// being swallowed inside the scoring loop, so drop behavior stays
// visible to tests.
type scoreOutcome struct {
	candidate types.ScoredCandidate
	err       error
}

// scoreCandidate computes all ranking signals for one candidate against
// the user's taste vector. It builds a fresh ScoredCandidate and never
// mutates the retrieval result.
func scoreCandidate(tasteVector []float32, candVector []float32, cand search.Result, opts RecommendOptions, feedback map[string]float64) (types.ScoredCandidate, error) {
	similarity, err := embedding.CosineSimilarity(tasteVector, candVector)
	if err != nil {
		return types.ScoredCandidate{}, fmt.Errorf("candidate %q: %w", cand.Song.Title, err)
	}
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}

	genreMatch := genreMatchScore(opts.GenreFilter, cand.Song.Genre)

	score := similarityWeight*similarity + genreMatchWeight*genreMatch

	if mood := opts.Mood(); mood != "" {
		text := strings.ToLower(cand.Song.Title + " " + cand.Song.PrimaryArtist() + " " +
			strings.Join(cand.Song.Genre, " "))
		score *= 1 + moodBoost(mood, text)*moodBoostFactor
	}

	if fb, ok := feedback[cand.Song.FeedbackKey()]; ok && fb != 0 {
		if fb > 0 {
			score *= 1 + fb*positiveFeedbackFactor
		} else {
			score *= 1 + fb*negativeFeedbackFactor
		}
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return types.ScoredCandidate{
		Song:        cand.Song,
		Album:       cand.Album,
		Image:       cand.Image,
		Similarity:  similarity,
		GenreMatch:  genreMatch,
		FinalScore:  score,
		Explanation: buildExplanation(similarity, genreMatch, opts.GenreFilter),
	}, nil
}

// genreMatchScore returns 1 when any requested genre token
// substring-matches the candidate's genre text, 0 otherwise.
func genreMatchScore(filter, candidateGenres []string) float64 {
	if len(filter) == 0 || len(candidateGenres) == 0 {
		return 0
	}
	genreText := strings.ToLower(strings.Join(candidateGenres, " "))
	for _, want := range filter {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			continue
		}
		if strings.Contains(genreText, want) {
			return 1
		}
	}
	return 0
}

// buildExplanation renders the human-readable match reason.
func buildExplanation(similarity, genreMatch float64, genreFilter []string) string {
	explanation := fmt.Sprintf("Similar to your taste (%.0f%% match)", similarity*100)
	if genreMatch > 0 && len(genreFilter) > 0 {
		n := len(genreFilter)
		if n > 2 {
			n = 2
		}
		explanation += " • Same genre: " + strings.Join(genreFilter[:n], ", ")
	}
	return explanation
}
