package search

import (
	"context"
	"log"
)

// MultiProvider queries a primary source and tops up from fallbacks when
// the primary under-fills the requested limit. A failing source is
// logged and skipped; the aggregate only fails when every source fails.
type MultiProvider struct {
	providers []Provider
}

// NewMultiProvider composes providers in priority order.
func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

// Search queries sources in order until limit unique results are
// collected or the sources are exhausted.
func (m *MultiProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		collected []Result
		lastErr   error
		failures  int
	)
	for _, p := range m.providers {
		if len(collected) >= limit {
			break
		}
		results, err := p.Search(ctx, query, limit-len(collected))
		if err != nil {
			failures++
			lastErr = err
			log.Printf("search: source failed for query %q: %v", query, err)
			continue
		}
		collected = append(collected, results...)
	}

	if failures == len(m.providers) && lastErr != nil {
		return nil, lastErr
	}

	deduped := DedupeResults(collected)
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped, nil
}
