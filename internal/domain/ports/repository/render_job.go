package repository

import (
	"context"
	"time"

	"qa-explainer-video/internal/domain/model"
)

type RenderJobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.RenderJob) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.RenderJob, error)

	// FindByKey returns the most recent job for a prompt key.
	FindByKey(ctx context.Context, tx Tx, key string) (*model.RenderJob, error)

	// FetchAndMarkProcessing atomically claims the oldest pending job and
	// marks it 'processing' so no other worker picks it up.
	FetchAndMarkProcessing(ctx context.Context) (*model.RenderJob, error)

	// Touch refreshes the processing job's updated_at so a long-running
	// render is not reclaimed as stale while its worker is still alive.
	Touch(ctx context.Context, tx Tx, id string) error

	// RequeueStale flips 'processing' jobs untouched since before cutoff
	// back to 'pending' (or 'failed' once out of attempts) and returns how
	// many rows changed. Recovers claims held by crashed workers.
	RequeueStale(ctx context.Context, cutoff time.Time) (int, error)

	CountByStatus(ctx context.Context, status model.RenderJobStatus) (int, error)

	List(ctx context.Context, limit int) ([]*model.RenderJob, error)
}
