package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
)

var _ adapter.VideoSearcher = (*YouTubeSearcher)(nil)

// YouTubeSearcher finds reference videos through the Data API v3 search
// endpoint.
type YouTubeSearcher struct {
	apiKey string
	base   string // e.g., https://www.googleapis.com/youtube/v3
	client *http.Client
}

func NewYouTubeSearcher(apiKey string) *YouTubeSearcher {
	return &YouTubeSearcher{
		apiKey: apiKey,
		base:   "https://www.googleapis.com/youtube/v3",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewYouTubeSearcherWithBase exists for tests pointing at a local server.
func NewYouTubeSearcherWithBase(apiKey, base string) *YouTubeSearcher {
	s := NewYouTubeSearcher(apiKey)
	s.base = base
	return s
}

func (s *YouTubeSearcher) SearchVideos(ctx context.Context, query string, n int) ([]model.Link, error) {
	if n <= 0 {
		n = 3
	}
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(n))
	q.Set("q", query)
	q.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: youtube http %d", domain.ErrSearchFailed, resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrSearchFailed, err)
	}

	links := make([]model.Link, 0, len(payload.Items))
	for _, it := range payload.Items {
		if it.ID.VideoID == "" {
			continue
		}
		links = append(links, model.Link{
			Title: it.Snippet.Title,
			URL:   "https://www.youtube.com/watch?v=" + it.ID.VideoID,
		})
	}
	return links, nil
}
