package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
	"qa-explainer-video/internal/domain/ports/repository"
)

// Compile-time check
var _ ExplainerUseCase = (*explainerUC)(nil)

// SubmitLocker serializes submissions per prompt key.
type SubmitLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ResultCache holds sidecar payloads of completed jobs.
type ResultCache interface {
	Store(ctx context.Context, jobKey string, sc *model.Sidecar) error
	Get(ctx context.Context, jobKey string) (*model.Sidecar, error)
}

type ExplainerUseCase interface {
	// Submit enqueues a render job for a question/answer pair. Identical
	// prompts attach to the live or completed job for that key instead of
	// rendering twice; created reports whether a new job was enqueued.
	Submit(ctx context.Context, question, userAnswer string) (job *model.RenderJob, created bool, err error)

	// Status returns the job and, once completed, its verified sidecar.
	Status(ctx context.Context, id string) (*model.RenderJob, *model.Sidecar, error)

	// List returns recent jobs, newest first.
	List(ctx context.Context, limit int) ([]*model.RenderJob, error)

	// Requeue puts a failed job back on the queue with fresh attempts.
	Requeue(ctx context.Context, id string) (*model.RenderJob, error)
}

type explainerUC struct {
	jobs        repository.RenderJobRepository
	locker      SubmitLocker
	cache       ResultCache
	store       adapter.MediaStore
	maxAttempts int
	log         *zerolog.Logger
}

func NewExplainerUseCase(
	jobs repository.RenderJobRepository,
	locker SubmitLocker,
	cache ResultCache,
	store adapter.MediaStore,
	maxAttempts int,
	log *zerolog.Logger,
) *explainerUC {
	return &explainerUC{
		jobs:        jobs,
		locker:      locker,
		cache:       cache,
		store:       store,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

const submitLockTTL = 10 * time.Second

func (u *explainerUC) Submit(ctx context.Context, question, userAnswer string) (*model.RenderJob, bool, error) {
	question = strings.TrimSpace(question)
	userAnswer = strings.TrimSpace(userAnswer)
	if question == "" || userAnswer == "" {
		return nil, false, domain.ErrEmptyPrompt
	}

	key := model.JobKey(question, userAnswer)

	token, err := u.locker.TryLock(ctx, key, submitLockTTL)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = u.locker.Unlock(ctx, key, token) }()

	existing, err := u.jobs.FindByKey(ctx, nil, key)
	switch {
	case err == nil:
		if existing.Live() || existing.Status == model.RenderJobStatusCompleted {
			return existing, false, nil
		}
		// failed: fall through and enqueue a fresh job for the same key
	case errors.Is(err, domain.ErrNotFound):
		// first submission for this key
	default:
		return nil, false, err
	}

	job := model.NewRenderJob(question, userAnswer, u.maxAttempts)
	if err := u.jobs.Save(ctx, nil, job); err != nil {
		return nil, false, err
	}
	u.log.Info().Str("job_id", job.ID).Str("job_key", job.Key).Msg("render job enqueued")
	return job, true, nil
}

func (u *explainerUC) Status(ctx context.Context, id string) (*model.RenderJob, *model.Sidecar, error) {
	job, err := u.jobs.FindByID(ctx, nil, id)
	if errors.Is(err, domain.ErrNotFound) && len(id) == 64 {
		// pollers may hand back the prompt key instead of the job id
		job, err = u.jobs.FindByKey(ctx, nil, id)
	}
	if err != nil {
		return nil, nil, err
	}
	if job.Status != model.RenderJobStatusCompleted {
		return job, nil, nil
	}

	if sc, err := u.cache.Get(ctx, job.Key); err == nil && sc != nil {
		return job, sc, nil
	}

	// Cache miss: verify both artifacts are really in the store before
	// reporting completion.
	ok, err := u.store.Exists(ctx, model.VideoKey(job.Key))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return u.markArtifactLost(ctx, job)
	}
	data, err := u.store.GetBytes(ctx, model.SidecarKey(job.Key))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return u.markArtifactLost(ctx, job)
		}
		return nil, nil, err
	}

	sc, err := model.ParseSidecar(data)
	if err != nil {
		return nil, nil, err
	}
	if err := u.cache.Store(ctx, job.Key, sc); err != nil {
		u.log.Warn().Err(err).Str("job_key", job.Key).Msg("result cache store failed")
	}
	return job, sc, nil
}

// markArtifactLost downgrades a completed job whose artifacts vanished from
// the store so clients are not handed dead links.
func (u *explainerUC) markArtifactLost(ctx context.Context, job *model.RenderJob) (*model.RenderJob, *model.Sidecar, error) {
	job.Status = model.RenderJobStatusFailed
	job.LastError = "artifact missing from store"
	if err := u.jobs.Save(ctx, nil, job); err != nil {
		u.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not persist artifact loss")
	}
	return job, nil, nil
}

func (u *explainerUC) List(ctx context.Context, limit int) ([]*model.RenderJob, error) {
	return u.jobs.List(ctx, limit)
}

func (u *explainerUC) Requeue(ctx context.Context, id string) (*model.RenderJob, error) {
	job, err := u.jobs.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.RenderJobStatusFailed {
		return nil, domain.ErrInvalidArgument
	}
	job.Status = model.RenderJobStatusPending
	job.Attempts = 0
	job.LastError = ""
	if err := u.jobs.Save(ctx, nil, job); err != nil {
		return nil, err
	}
	u.log.Info().Str("job_id", job.ID).Msg("job requeued by admin")
	return job, nil
}
