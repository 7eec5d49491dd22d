package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resonate/internal/search"
	"github.com/scrypster/resonate/pkg/types"
)

// fixture wires a recommender over the in-memory mocks with a profile
// already analyzed from the given seeds.
type fixture struct {
	backend  *stubEmbedder
	searcher *stubSearcher
	history  *stubHistory
	resolver *stubResolver
	rec      *Recommender
}

func newFixture(t *testing.T, seeds []types.SongRef) *fixture {
	t.Helper()

	backend := newStubEmbedder()
	embedder := newTestSongEmbedder(backend)
	profiles := NewProfileService(newMemProfileStore(), embedder)
	searcher := newStubSearcher()
	history := &stubHistory{}
	resolver := &stubResolver{}

	if len(seeds) > 0 {
		_, err := profiles.AnalyzeTaste(context.Background(), "u1", seeds)
		require.NoError(t, err)
	}

	return &fixture{
		backend:  backend,
		searcher: searcher,
		history:  history,
		resolver: resolver,
		rec: NewRecommender(profiles, searcher, embedder, RecommenderConfig{
			History:  history,
			Resolver: resolver,
		}),
	}
}

func rockSeeds() []types.SongRef {
	return []types.SongRef{
		seedSong("Paranoid", "Black Sabbath", "rock"),
		seedSong("Back in Black", "AC/DC", "rock"),
		seedSong("Smoke on the Water", "Deep Purple", "rock"),
		seedSong("Kashmir", "Led Zeppelin", "rock"),
		seedSong("Painkiller", "Judas Priest", "rock"),
	}
}

func TestGetRecommendationsNoProfile(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.rec.GetRecommendations(context.Background(), "ghost", 5, RecommendOptions{})
	require.NoError(t, err, "a cold-start user is not an error")
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, "no profile", result.Reason)
}

func TestGetRecommendationsNoCandidates(t *testing.T) {
	f := newFixture(t, rockSeeds())
	// Searcher returns nothing for every query.

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, "no candidates", result.Reason)
}

func TestGetRecommendationsHappyPath(t *testing.T) {
	f := newFixture(t, rockSeeds())
	f.resolver.videoID = "dQw4w9WgXcQ"

	f.searcher.results["Black Sabbath"] = []search.Result{
		candidate("Iron Man", "Black Sabbath", "rock"),
		candidate("War Pigs", "Black Sabbath", "rock"),
		candidate("Children of the Grave", "Black Sabbath", "rock"),
	}
	f.searcher.results["AC/DC"] = []search.Result{
		candidate("Thunderstruck", "AC/DC", "rock"),
		candidate("Highway to Hell", "AC/DC", "rock"),
	}
	f.searcher.results["Deep Purple"] = []search.Result{
		candidate("Highway Star", "Deep Purple", "rock"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 5)
	assert.Equal(t, 5, result.Count)

	for i, rec := range result.Recommendations {
		assert.True(t, strings.HasPrefix(rec.ID, "rec_"), "id %q", rec.ID)
		assert.GreaterOrEqual(t, rec.Score, 0.0)
		assert.LessOrEqual(t, rec.Score, 1.0)
		assert.NotEmpty(t, rec.Explanation)
		assert.NotEmpty(t, rec.Links.Spotify)
		assert.NotEmpty(t, rec.Links.YouTubeMusic)
		require.NotNil(t, rec.VideoID)
		assert.Equal(t, "dQw4w9WgXcQ", *rec.VideoID)

		if i > 0 {
			assert.LessOrEqual(t, rec.Score, result.Recommendations[i-1].Score,
				"results must be sorted by descending score")
		}
	}

	// The per-artist cap holds in the final list.
	counts := make(map[string]int)
	for _, rec := range result.Recommendations {
		counts[strings.ToLower(rec.Song.PrimaryArtist())]++
	}
	for artist, n := range counts {
		assert.LessOrEqual(t, n, maxPerArtist, "artist %q", artist)
	}
}

func TestGetRecommendationsNeverReturnsSeeds(t *testing.T) {
	f := newFixture(t, rockSeeds())

	// The catalog returns a seed song alongside fresh candidates.
	f.searcher.results["Black Sabbath"] = []search.Result{
		candidate("Paranoid", "Black Sabbath", "rock"), // seed
		candidate("Iron Man", "Black Sabbath", "rock"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Recommendations)

	for _, rec := range result.Recommendations {
		assert.NotEqual(t, "paranoid", strings.ToLower(rec.Song.Title),
			"seed songs must never be recommended back")
	}
}

func TestGetRecommendationsDeduplicatesAcrossStrategies(t *testing.T) {
	f := newFixture(t, rockSeeds())

	dup := candidate("Iron Man", "Black Sabbath", "rock")
	f.searcher.results["Black Sabbath"] = []search.Result{dup}
	f.searcher.results["Paranoid"] = []search.Result{dup} // title strategy returns it too

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 1)
}

func TestGetRecommendationsDropsUnscorableCandidates(t *testing.T) {
	f := newFixture(t, rockSeeds())

	good := candidate("Iron Man", "Black Sabbath", "rock")
	bad := candidate("Corrupted", "Unknown", "rock")
	f.backend.set(bad.Song, []float32{0, 0}) // zero vector cannot be scored

	f.searcher.results["Black Sabbath"] = []search.Result{good, bad}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err, "one bad candidate never fails the request")
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Iron Man", result.Recommendations[0].Song.Title)
}

func TestGetRecommendationsStrategyFailureDegrades(t *testing.T) {
	f := newFixture(t, rockSeeds())

	f.searcher.errs["Black Sabbath"] = fmt.Errorf("catalog timeout")
	f.searcher.results["AC/DC"] = []search.Result{
		candidate("Thunderstruck", "AC/DC", "rock"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err, "a single failing strategy degrades, not fails")
	assert.NotEmpty(t, result.Recommendations)
}

func TestGetRecommendationsGenreFilterBoostsMatches(t *testing.T) {
	f := newFixture(t, rockSeeds())

	f.searcher.results["Black Sabbath"] = []search.Result{
		candidate("Iron Man", "Black Sabbath", "rock"),
		candidate("Laguna Sunrise", "Black Sabbath", "classical"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{
		GenreFilter: []string{"rock"},
	})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "Iron Man", result.Recommendations[0].Song.Title,
		"the genre-matching candidate ranks first")

	// The explicit filter also drives retrieval queries.
	assert.Contains(t, f.searcher.queried(), "rock")
}

func TestGetRecommendationsFeedbackReordersResults(t *testing.T) {
	f := newFixture(t, rockSeeds())

	liked := candidate("Thunderstruck", "AC/DC", "rock")
	skipped := candidate("Highway Star", "Deep Purple", "rock")
	f.searcher.results["AC/DC"] = []search.Result{liked}
	f.searcher.results["Deep Purple"] = []search.Result{skipped}

	f.history.events = []types.PlayEvent{
		{Title: "Thunderstruck", Artists: []string{"AC/DC"}, Completed: true, PlayCount: 3},
		{Title: "Highway Star", Artists: []string{"Deep Purple"}, DurationSeconds: 4, PlayCount: 1},
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "Thunderstruck", result.Recommendations[0].Song.Title)
	assert.Greater(t, result.Recommendations[0].Score, result.Recommendations[1].Score)
}

func TestGetRecommendationsHistoryFailureDegrades(t *testing.T) {
	f := newFixture(t, rockSeeds())
	f.history.err = fmt.Errorf("history store down")
	f.searcher.results["AC/DC"] = []search.Result{
		candidate("Thunderstruck", "AC/DC", "rock"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err, "history failure degrades to no feedback adjustment")
	assert.NotEmpty(t, result.Recommendations)
}

func TestGetRecommendationsResolverFailureDegrades(t *testing.T) {
	f := newFixture(t, rockSeeds())
	f.resolver.err = fmt.Errorf("quota exceeded")
	f.searcher.results["AC/DC"] = []search.Result{
		candidate("Thunderstruck", "AC/DC", "rock"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	assert.Nil(t, result.Recommendations[0].VideoID)
}

func TestGetRecommendationsFallbackGenreRetrieval(t *testing.T) {
	f := newFixture(t, rockSeeds())

	// Primary strategies return nothing; only the seed-genre fallback
	// finds candidates.
	f.searcher.results["rock"] = []search.Result{
		candidate("You Really Got Me", "The Kinks", "rock"),
	}

	result, err := f.rec.GetRecommendations(context.Background(), "u1", 5, RecommendOptions{})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "You Really Got Me", result.Recommendations[0].Song.Title)
}

func TestGetRecommendationsLimitBounds(t *testing.T) {
	f := newFixture(t, rockSeeds())

	var results []search.Result
	for i := 0; i < 15; i++ {
		results = append(results,
			candidate(fmt.Sprintf("song-%d", i), fmt.Sprintf("band-%d", i), "rock"))
	}
	f.searcher.results["Black Sabbath"] = results

	// Zero limit falls back to the default.
	result, err := f.rec.GetRecommendations(context.Background(), "u1", 0, RecommendOptions{})
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, len(result.Recommendations))

	result, err = f.rec.GetRecommendations(context.Background(), "u1", 3, RecommendOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 3)
}

func TestFallbackGenres(t *testing.T) {
	seeds := []types.SongRef{
		seedSong("a", "x", "rock", "metal"),
		seedSong("b", "y", "jazz"),
	}

	out := fallbackGenres(nil, seeds)
	assert.Equal(t, []string{"rock", "metal"}, out, "bounded to two terms, seed order")

	out = fallbackGenres([]string{"indie"}, seeds)
	assert.Equal(t, []string{"indie", "rock"}, out, "explicit filter terms come first")

	out = fallbackGenres([]string{"Rock"}, seeds)
	assert.Equal(t, []string{"Rock", "metal"}, out, "case-insensitive dedupe")
}
