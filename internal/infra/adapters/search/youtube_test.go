package search_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/infra/adapters/search"
)

func TestSearchVideos(t *testing.T) {
	t.Run("maps items to watch links", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("maxResults"); got != "2" {
				t.Errorf("maxResults = %s", got)
			}
			if got := r.URL.Query().Get("key"); got != "test-key" {
				t.Errorf("key = %s", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"items":[
				{"id":{"videoId":"abc"},"snippet":{"title":"Fractions 101"}},
				{"id":{"videoId":""},"snippet":{"title":"channel, not a video"}},
				{"id":{"videoId":"def"},"snippet":{"title":"More fractions"}}
			]}`))
		}))
		defer srv.Close()

		s := search.NewYouTubeSearcherWithBase("test-key", srv.URL)
		links, err := s.SearchVideos(context.Background(), "fractions", 2)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(links) != 2 {
			t.Fatalf("expected 2 links, got %d", len(links))
		}
		if links[0].URL != "https://www.youtube.com/watch?v=abc" || links[0].Title != "Fractions 101" {
			t.Fatalf("unexpected first link: %+v", links[0])
		}
	})

	t.Run("non-2xx becomes ErrSearchFailed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		s := search.NewYouTubeSearcherWithBase("bad-key", srv.URL)
		_, err := s.SearchVideos(context.Background(), "fractions", 3)
		if !errors.Is(err, domain.ErrSearchFailed) {
			t.Fatalf("expected ErrSearchFailed, got %v", err)
		}
	})
}
