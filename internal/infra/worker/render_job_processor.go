package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
	"qa-explainer-video/internal/domain/ports/repository"
	"qa-explainer-video/internal/infra/logging"
	"qa-explainer-video/internal/infra/metrics"
	"qa-explainer-video/internal/usecase"
)

// RenderJobProcessor drains the render queue: claim a pending job, run the
// script -> render -> references -> upload pipeline, and finalize. Retryable
// failures put the job back on the queue until attempts run out; script
// errors fail it immediately since re-rendering the same prompt would only
// burn tokens.
type RenderJobProcessor struct {
	jobsRepo  repository.RenderJobRepository
	scripts   usecase.ScriptUseCase
	refs      usecase.ReferencesUseCase
	renderer  adapter.SceneRenderer
	store     adapter.MediaStore
	cache     usecase.ResultCache
	poll      time.Duration
	heartbeat time.Duration
	log       *zerolog.Logger
}

func NewRenderJobProcessor(
	jobsRepo repository.RenderJobRepository,
	scripts usecase.ScriptUseCase,
	refs usecase.ReferencesUseCase,
	renderer adapter.SceneRenderer,
	store adapter.MediaStore,
	cache usecase.ResultCache,
	poll time.Duration,
	log *zerolog.Logger,
) *RenderJobProcessor {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &RenderJobProcessor{
		jobsRepo:  jobsRepo,
		scripts:   scripts,
		refs:      refs,
		renderer:  renderer,
		store:     store,
		cache:     cache,
		poll:      poll,
		heartbeat: time.Minute,
		log:       log,
	}
}

// Start polls for pending jobs and hands them to the pool.
// Run it in a goroutine.
func (p *RenderJobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("render job processor started")
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("render job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.ProcessOne(ctx)
				return nil
			})
		}
	}
}

// ProcessOne claims and runs at most one job. Exported so the one-shot
// worker command can drain the queue without a pool.
func (p *RenderJobProcessor) ProcessOne(ctx context.Context) bool {
	job, err := p.jobsRepo.FetchAndMarkProcessing(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to fetch render job")
		}
		return false
	}

	ctx = logging.WithJobID(logging.WithJobKey(ctx, job.Key), job.ID)
	log := logging.With(ctx, p.log)
	log.Info().Int("attempt", job.Attempts).Msg("processing render job")
	start := time.Now()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go p.keepClaimFresh(hbCtx, job.ID)
	err = p.handleJob(ctx, job)
	stopHeartbeat()
	latency := time.Since(start)

	// Final write on a fresh context so shutdown doesn't lose the status.
	switch {
	case err == nil:
		job.Status = model.RenderJobStatusCompleted
		job.LastError = ""
		job.FinishedAt = time.Now()
		metrics.IncJob("completed")
		log.Info().Dur("duration_ms", latency).Msg("render job completed")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		// Shutdown interrupted the pipeline. Release the claim and hand the
		// attempt back; a cancelled worker must not spend the job's budget.
		job.Status = model.RenderJobStatusPending
		job.Attempts--
		job.LastError = err.Error()
		metrics.IncJob("interrupted")
		log.Warn().Err(err).Msg("render job interrupted, claim released")
	case domain.Retryable(err) && !job.ExhaustedAttempts():
		job.Status = model.RenderJobStatusPending
		job.LastError = err.Error()
		metrics.IncJob("requeued")
		metrics.IncRequeued(1)
		log.Warn().Err(err).Int("attempt", job.Attempts).Msg("render job requeued")
	default:
		job.Status = model.RenderJobStatusFailed
		job.LastError = err.Error()
		job.FinishedAt = time.Now()
		metrics.IncJob("failed")
		log.Error().Err(err).Msg("render job failed")
	}
	if saveErr := p.jobsRepo.Save(context.Background(), nil, job); saveErr != nil {
		log.Error().Err(saveErr).Msg("could not persist final job status")
	}
	return true
}

// keepClaimFresh touches the job row while the pipeline runs so a slow but
// live render is not mistaken for a lost claim by the stale reaper.
func (p *RenderJobProcessor) keepClaimFresh(ctx context.Context, id string) {
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.jobsRepo.Touch(ctx, nil, id); err != nil {
				p.log.Warn().Err(err).Str("job_id", id).Msg("claim heartbeat failed")
			}
		}
	}
}

func (p *RenderJobProcessor) handleJob(ctx context.Context, job *model.RenderJob) error {
	script, err := p.scripts.Generate(ctx, job.Question, job.UserAnswer)
	if err != nil {
		return fmt.Errorf("script generation: %w", err)
	}

	defer p.renderer.Cleanup(job.Key)
	renderStart := time.Now()
	videoPath, err := p.renderer.Render(ctx, job.Key, script)
	if err != nil {
		return err
	}
	metrics.ObserveRender(time.Since(renderStart).Seconds())

	refVideos, refArticles, err := p.refs.Collect(ctx, job.Question)
	if err != nil {
		return err
	}

	videoKey := model.VideoKey(job.Key)
	videoURL, err := p.store.PutFile(ctx, videoKey, videoPath, "video/mp4")
	if err != nil {
		metrics.IncUpload("video", false)
		return err
	}
	metrics.IncUpload("video", true)

	// The sidecar goes up strictly after the video: its presence means the
	// result is complete.
	sidecar := &model.Sidecar{Resources: model.ResourceLinks{
		Video:       model.Link{Title: model.SidecarTitle(job.Question), URL: videoURL},
		RefVideos:   refVideos,
		RefArticles: refArticles,
	}}
	data, err := model.MarshalSidecar(sidecar)
	if err != nil {
		return err
	}
	if _, err := p.store.PutBytes(ctx, model.SidecarKey(job.Key), data, "application/json"); err != nil {
		metrics.IncUpload("sidecar", false)
		return err
	}
	metrics.IncUpload("sidecar", true)
	metrics.AddUploadBytes("sidecar", int64(len(data)))

	if err := p.cache.Store(ctx, job.Key, sidecar); err != nil {
		logging.With(ctx, p.log).Warn().Err(err).Msg("result cache store failed")
	}

	job.VideoKey = videoKey
	job.VideoURL = videoURL
	return nil
}
