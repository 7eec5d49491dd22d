package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/resonate/pkg/types"
)

const lastFMAPIURL = "https://ws.audioscrobbler.com/2.0/"

// lastFMMaxLimit is the per-request result cap the Last.fm API enforces.
const lastFMMaxLimit = 30

// LastFMConfig configures the Last.fm fallback client.
type LastFMConfig struct {
	// BaseURL overrides the Last.fm API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds each HTTP request (default: 10 seconds).
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests (default: 5).
	RequestsPerSecond float64
}

// LastFMClient searches Last.fm track matches. It returns no genre or
// album metadata; it exists as a fallback when the primary source
// under-fills the candidate pool.
type LastFMClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewLastFMClient creates a Last.fm search client with defaults for any
// zero-valued config field.
func NewLastFMClient(cfg LastFMConfig) *LastFMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = lastFMAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	return &LastFMClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type lastFMResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name   string `json:"name"`
				Artist string `json:"artist"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// Search queries Last.fm track.search.
func (c *LastFMClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > lastFMMaxLimit {
		limit = lastFMMaxLimit
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("method", "track.search")
	params.Set("track", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lastfm returned status %d: %s", resp.StatusCode, string(msg))
	}

	var respData lastFMResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var results []Result
	for _, track := range respData.Results.TrackMatches.Track {
		name := strings.TrimSpace(track.Name)
		if name == "" {
			continue
		}
		artist := strings.TrimSpace(track.Artist)
		if artist == "" {
			artist = "Unknown Artist"
		}
		results = append(results, Result{
			Song: types.SongRef{Title: name, Artists: []string{artist}},
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
