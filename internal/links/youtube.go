package links

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/scrypster/resonate/pkg/types"
)

// VideoResolver resolves a song to a playable external video ID.
// Resolution is best-effort: an error or empty result leaves the
// recommendation's video reference nil and never fails the call.
type VideoResolver interface {
	ResolveVideoID(ctx context.Context, song types.SongRef) (string, error)
}

const youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// YouTubeConfig configures the YouTube Data API resolver.
type YouTubeConfig struct {
	// APIKey is the YouTube Data API key. Required.
	APIKey string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds each HTTP request (default: 5 seconds).
	Timeout time.Duration
}

// YouTubeResolver resolves playable video IDs through the YouTube Data
// API search endpoint, trying the normalized queries in preference
// order.
type YouTubeResolver struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewYouTubeResolver creates a resolver; returns an error when no API
// key is configured, so callers can fall back to link-only output.
func NewYouTubeResolver(cfg YouTubeConfig) (*YouTubeResolver, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube resolver: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = youtubeSearchURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &YouTubeResolver{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// ResolveVideoID returns the first valid video ID found for the song's
// normalized search queries, or an empty string when nothing matched.
func (r *YouTubeResolver) ResolveVideoID(ctx context.Context, song types.SongRef) (string, error) {
	for _, query := range SearchQueries(song.Title, song.Artists) {
		id, err := r.search(ctx, query)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}

func (r *YouTubeResolver) search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "video")
	params.Set("maxResults", "3")
	params.Set("q", query)
	params.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("youtube returned status %d: %s", resp.StatusCode, string(msg))
	}

	var respData youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, item := range respData.Items {
		if videoIDPattern.MatchString(item.ID.VideoID) {
			return item.ID.VideoID, nil
		}
	}
	return "", nil
}
