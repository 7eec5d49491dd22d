package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scrypster/resonate/internal/embedding"
	"github.com/scrypster/resonate/internal/links"
	"github.com/scrypster/resonate/internal/search"
	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

// defaultLimit and maxLimit bound the requested result count.
const (
	defaultLimit = 10
	maxLimit     = 50
)

// RecommenderConfig carries the recommender's optional collaborators.
// A nil History disables feedback adjustment; a nil Resolver leaves the
// playable video reference unset.
type RecommenderConfig struct {
	History  storage.HistoryReader
	Resolver links.VideoResolver
}

// Recommender generates ranked song recommendations from a user's taste
// profile. Retrieval strategies fan out concurrently; each strategy's
// failure degrades it to zero candidates instead of failing the request.
// Only total embedding-provider or profile-store failures propagate.
type Recommender struct {
	profiles *ProfileService
	searcher search.Provider
	embedder *embedding.SongEmbedder
	history  storage.HistoryReader
	resolver links.VideoResolver
}

// NewRecommender creates a recommender over the given collaborators.
func NewRecommender(profiles *ProfileService, searcher search.Provider, embedder *embedding.SongEmbedder, cfg RecommenderConfig) *Recommender {
	return &Recommender{
		profiles: profiles,
		searcher: searcher,
		embedder: embedder,
		history:  cfg.History,
		resolver: cfg.Resolver,
	}
}

// GetRecommendations runs the full pipeline: load profile, fan out
// retrieval, dedupe against seeds, score, diversity-filter, assemble.
//
// A user with no profile receives an empty successful result with
// Reason "no profile"; this is distinct from a profile that simply
// yielded no candidates.
func (r *Recommender) GetRecommendations(ctx context.Context, userID string, limit int, opts RecommendOptions) (*types.RecommendationResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	profile, err := r.profiles.GetTasteProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &types.RecommendationResult{
			Recommendations: []types.Recommendation{},
			Reason:          "no profile",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load taste profile: %w", err)
	}

	pool := r.gatherCandidates(ctx, profile, limit, opts.GenreFilter)
	if len(pool) == 0 {
		return &types.RecommendationResult{
			Recommendations: []types.Recommendation{},
			Reason:          "no candidates",
		}, nil
	}

	feedback := r.feedbackTable(ctx, userID)

	scored, err := r.scorePool(ctx, profile.TasteVector, pool, opts, feedback)
	if err != nil {
		return nil, err
	}

	sortByScore(scored)

	// Pass 2x the limit through the diversity filter, then re-sort by
	// the possibly penalized scores and truncate.
	diverse := applyDiversity(scored, 2*limit)
	sortByScore(diverse)
	if len(diverse) > limit {
		diverse = diverse[:limit]
	}

	recommendations := make([]types.Recommendation, 0, len(diverse))
	for _, cand := range diverse {
		recommendations = append(recommendations, r.assemble(ctx, cand))
	}

	result := &types.RecommendationResult{
		Recommendations: recommendations,
		Count:           len(recommendations),
	}
	if len(recommendations) == 0 {
		result.Reason = "no candidates"
	}
	return result, nil
}

// retrievalQuery is one search-strategy invocation.
type retrievalQuery struct {
	term  string
	limit int
}

// gatherCandidates fans out the retrieval strategies and merges their
// results in strategy-priority order, dropping seed songs and duplicate
// identity keys and bounding the pool to roughly 3x the limit.
//
// Strategies: per-seed-artist, per-seed-title, and explicit genre-filter
// queries run concurrently. The seed-genre fallback only runs when the
// pool is still under-filled afterwards.
func (r *Recommender) gatherCandidates(ctx context.Context, profile *types.TasteProfile, limit int, genreFilter []string) []search.Result {
	seeds := profile.SeedSongs
	var queries []retrievalQuery

	for i, seed := range seeds {
		if i >= maxArtistSeeds {
			break
		}
		if artist := seed.PrimaryArtist(); artist != "" {
			queries = append(queries, retrievalQuery{term: artist, limit: artistQueryLimit})
		}
	}
	for i, seed := range seeds {
		if i >= maxTitleSeeds {
			break
		}
		queries = append(queries, retrievalQuery{term: seed.Title, limit: titleQueryLimit})
	}
	for i, genre := range genreFilter {
		if i >= maxFilterGenres {
			break
		}
		queries = append(queries, retrievalQuery{term: genre, limit: genreQueryLimit})
	}

	resultsByQuery := make([][]search.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results, err := r.searcher.Search(gctx, q.term, q.limit)
			if err != nil {
				// Strategy isolation: a failing query yields zero
				// candidates and never aborts the request.
				log.Printf("engine: retrieval for %q failed: %v", q.term, err)
				return nil
			}
			resultsByQuery[i] = results
			return nil
		})
	}
	g.Wait() //nolint:errcheck // strategies never return errors

	maxPool := 3 * limit
	seedKeys := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		seedKeys[seed.FeedbackKey()] = struct{}{}
	}
	seen := make(map[string]struct{})
	var pool []search.Result

	merge := func(results []search.Result) {
		for _, res := range results {
			if len(pool) >= maxPool {
				return
			}
			if res.Song.Title == "" {
				continue
			}
			if _, isSeed := seedKeys[res.Song.FeedbackKey()]; isSeed {
				continue
			}
			key := res.Song.IdentityKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pool = append(pool, res)
		}
	}

	for _, results := range resultsByQuery {
		merge(results)
	}

	// Fallback: derive genre terms from the filter plus the seeds, used
	// only when the primary strategies under-filled the pool.
	if len(pool) < limit {
		for _, genre := range fallbackGenres(genreFilter, seeds) {
			if len(pool) >= maxPool {
				break
			}
			results, err := r.searcher.Search(ctx, genre, fallbackLimit)
			if err != nil {
				log.Printf("engine: fallback retrieval for %q failed: %v", genre, err)
				continue
			}
			merge(results)
		}
	}

	return pool
}

// fallbackGenres returns up to maxFallbackGenres terms from the union of
// the explicit filter and the seed songs' genres, filter first.
func fallbackGenres(genreFilter []string, seeds []types.SongRef) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(genre string) {
		if genre == "" || len(out) >= maxFallbackGenres {
			return
		}
		key := strings.ToLower(strings.TrimSpace(genre))
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, genre)
	}
	for _, g := range genreFilter {
		add(g)
	}
	for _, seed := range seeds {
		for _, g := range seed.Genre {
			add(g)
		}
	}
	return out
}

// scorePool embeds all candidates in one batch and scores each one.
// Per-candidate failures are logged and dropped; a total embedding
// failure propagates.
func (r *Recommender) scorePool(ctx context.Context, tasteVector []float32, pool []search.Result, opts RecommendOptions, feedback map[string]float64) ([]types.ScoredCandidate, error) {
	songs := make([]types.SongRef, len(pool))
	for i, res := range pool {
		songs[i] = res.Song
	}
	vectors, err := r.embedder.EmbedSongs(ctx, songs)
	if err != nil {
		return nil, fmt.Errorf("failed to embed candidates: %w", err)
	}

	outcomes := make([]scoreOutcome, len(pool))
	for i, res := range pool {
		cand, err := scoreCandidate(tasteVector, vectors[i], res, opts, feedback)
		outcomes[i] = scoreOutcome{candidate: cand, err: err}
	}

	scored := make([]types.ScoredCandidate, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			log.Printf("engine: dropping candidate: %v", o.err)
			continue
		}
		scored = append(scored, o.candidate)
	}
	return scored, nil
}

// feedbackTable builds the per-song feedback scores from recent
// listening history. History failures degrade to no adjustment.
func (r *Recommender) feedbackTable(ctx context.Context, userID string) map[string]float64 {
	if r.history == nil {
		return nil
	}
	events, err := r.history.UserHistory(ctx, userID, feedbackHistoryLimit, feedbackHistoryWindow)
	if err != nil {
		log.Printf("engine: failed to load listening history for %s: %v", userID, err)
		return nil
	}
	return FeedbackScores(events)
}

// assemble turns an accepted candidate into the final recommendation
// record: platform links are built locally, and the playable video
// reference is resolved best-effort.
func (r *Recommender) assemble(ctx context.Context, cand types.ScoredCandidate) types.Recommendation {
	rec := types.Recommendation{
		ID:          "rec_" + uuid.NewString(),
		Song:        cand.Song,
		Album:       cand.Album,
		Image:       cand.Image,
		Score:       cand.FinalScore,
		Confidence:  cand.FinalScore,
		Explanation: cand.Explanation,
		Links:       links.Build(cand.Song),
	}

	if r.resolver != nil {
		videoID, err := r.resolver.ResolveVideoID(ctx, cand.Song)
		if err != nil {
			log.Printf("engine: could not resolve video for %q: %v", cand.Song.Title, err)
		} else if videoID != "" {
			rec.VideoID = &videoID
		}
	}
	return rec
}

// sortByScore sorts candidates by descending final score.
func sortByScore(candidates []types.ScoredCandidate) {
	slices.SortStableFunc(candidates, func(a, b types.ScoredCandidate) int {
		if a.FinalScore > b.FinalScore {
			return -1
		}
		if a.FinalScore < b.FinalScore {
			return 1
		}
		return 0
	})
}
