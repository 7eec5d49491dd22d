package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resonate/pkg/types"
)

func scoredSong(title, artist string, score float64, genres ...string) types.ScoredCandidate {
	return types.ScoredCandidate{
		Song:       seedSong(title, artist, genres...),
		FinalScore: score,
	}
}

func TestApplyDiversityArtistCap(t *testing.T) {
	// Five songs by the same artist, all top-scored; only two survive.
	candidates := []types.ScoredCandidate{
		scoredSong("a", "Radiohead", 0.9),
		scoredSong("b", "Radiohead", 0.89),
		scoredSong("c", "Radiohead", 0.88),
		scoredSong("d", "Radiohead", 0.87),
		scoredSong("e", "Muse", 0.5),
	}

	out := applyDiversity(candidates, 10)
	counts := make(map[string]int)
	for _, c := range out {
		counts[strings.ToLower(c.Song.PrimaryArtist())]++
	}
	assert.Equal(t, 2, counts["radiohead"])
	assert.Equal(t, 1, counts["muse"])
}

func TestApplyDiversityConsecutivePenalty(t *testing.T) {
	candidates := []types.ScoredCandidate{
		scoredSong("a", "Radiohead", 0.9),
		scoredSong("b", "Radiohead", 0.8),
		scoredSong("c", "Muse", 0.7),
	}

	out := applyDiversity(candidates, 10)
	require.Len(t, out, 3)

	assert.Equal(t, 0.9, out[0].FinalScore, "leader keeps its score")
	assert.InDelta(t, 0.8*(1-consecutiveArtistPenalty), out[1].FinalScore, 1e-9,
		"back-to-back artist repeat is penalized")
	assert.Equal(t, 0.7, out[2].FinalScore)
}

func TestApplyDiversityGenrePenaltyNeedsPressure(t *testing.T) {
	// The genre penalty only applies once more than three distinct
	// signatures have been seen; early repeats ride free.
	early := []types.ScoredCandidate{
		scoredSong("a", "A1", 0.9, "rock"),
		scoredSong("b", "B1", 0.8, "rock"),
	}
	out := applyDiversity(early, 10)
	require.Len(t, out, 2)
	assert.Equal(t, 0.8, out[1].FinalScore, "repeat before pressure threshold is free")

	// Build up four distinct signatures, then repeat one.
	pressured := []types.ScoredCandidate{
		scoredSong("a", "A1", 0.9, "rock"),
		scoredSong("b", "B1", 0.85, "jazz"),
		scoredSong("c", "C1", 0.8, "folk"),
		scoredSong("d", "D1", 0.75, "pop"),
		scoredSong("e", "E1", 0.7, "rock"),
	}
	out = applyDiversity(pressured, 10)
	require.Len(t, out, 5)
	assert.InDelta(t, 0.7*(1-repeatGenrePenalty), out[4].FinalScore, 1e-9)
}

func TestApplyDiversityLimit(t *testing.T) {
	var candidates []types.ScoredCandidate
	for i := 0; i < 30; i++ {
		candidates = append(candidates,
			scoredSong(fmt.Sprintf("song-%d", i), fmt.Sprintf("artist-%d", i), 1-float64(i)*0.01))
	}

	out := applyDiversity(candidates, 10)
	assert.Len(t, out, 10)
}

func TestApplyDiversityEmpty(t *testing.T) {
	assert.Nil(t, applyDiversity(nil, 10))
}
