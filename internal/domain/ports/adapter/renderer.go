package adapter

import (
	"context"

	"qa-explainer-video/internal/domain/model"
)

// SceneRenderer turns a validated scene script into a video file on local
// disk. jobKey names the temp script and media directory so concurrent
// renders never collide. The returned path stays valid until Cleanup.
type SceneRenderer interface {
	Render(ctx context.Context, jobKey string, script *model.SceneScript) (videoPath string, err error)

	// Cleanup removes the temp script and media directory for a job.
	// Safe to call whether or not Render succeeded.
	Cleanup(jobKey string)
}
