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

const itunesSearchURL = "https://itunes.apple.com/search"

// ITunesConfig configures the iTunes search client.
type ITunesConfig struct {
	// BaseURL overrides the iTunes API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds each HTTP request (default: 10 seconds).
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests (default: 5).
	RequestsPerSecond float64

	// MaxRetries is how many times a 429 or transport error is retried
	// (default: 2).
	MaxRetries int
}

// ITunesClient searches the iTunes catalog. The API is free and needs no
// authentication, which makes it the primary retrieval source.
type ITunesClient struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewITunesClient creates an iTunes search client with defaults for any
// zero-valued config field.
func NewITunesClient(cfg ITunesConfig) *ITunesClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = itunesSearchURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	return &ITunesClient{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries: cfg.MaxRetries,
	}
}

type itunesResponse struct {
	Results []struct {
		TrackName        string `json:"trackName"`
		ArtistName       string `json:"artistName"`
		CollectionName   string `json:"collectionName"`
		PrimaryGenreName string `json:"primaryGenreName"`
		ArtworkURL100    string `json:"artworkUrl100"`
	} `json:"results"`
}

// Search queries the iTunes catalog. Rate limited; 429 responses back
// off and retry up to MaxRetries times.
func (c *ITunesClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		results, retry, err := c.doSearch(ctx, reqURL)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !retry {
			break
		}

		// Linear backoff before the next attempt.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return nil, fmt.Errorf("itunes search failed: %w", lastErr)
}

func (c *ITunesClient) doSearch(ctx context.Context, reqURL string) (results []Result, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("itunes rate limited")
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("itunes returned status %d: %s", resp.StatusCode, string(msg))
	}

	var respData itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, item := range respData.Results {
		title := strings.TrimSpace(item.TrackName)
		if title == "" {
			continue
		}
		artist := item.ArtistName
		if artist == "" {
			artist = "Unknown Artist"
		}
		var genre []string
		if item.PrimaryGenreName != "" {
			genre = []string{item.PrimaryGenreName}
		}
		results = append(results, Result{
			Song: types.SongRef{
				Title:   title,
				Artists: []string{artist},
				Genre:   genre,
			},
			Album: item.CollectionName,
			Image: upsizeArtwork(item.ArtworkURL100),
		})
	}
	return results, false, nil
}

// upsizeArtwork swaps the 100x100 artwork variant for the 600x600 one.
func upsizeArtwork(artworkURL string) string {
	return strings.Replace(artworkURL, "100x100bb", "600x600bb", 1)
}
