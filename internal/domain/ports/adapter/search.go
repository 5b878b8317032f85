package adapter

import (
	"context"

	"qa-explainer-video/internal/domain/model"
)

// VideoSearcher is the port for the external video-search API.
type VideoSearcher interface {
	SearchVideos(ctx context.Context, query string, n int) ([]model.Link, error)
}
