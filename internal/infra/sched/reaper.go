package sched

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/repository"
	"qa-explainer-video/internal/infra/metrics"
)

// Reaper periodically recovers jobs whose worker died mid-render and sweeps
// abandoned render directories. It also refreshes the queue depth gauge.
type Reaper struct {
	interval   time.Duration
	staleAfter time.Duration
	workDir    string
	jobs       repository.RenderJobRepository
	log        *zerolog.Logger
}

func NewReaper(interval, staleAfter time.Duration, workDir string, jobs repository.RenderJobRepository, logger *zerolog.Logger) *Reaper {
	reapLog := logger.With().Str("component", "Reaper").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		interval:   interval,
		staleAfter: staleAfter,
		workDir:    workDir,
		jobs:       jobs,
		log:        &reapLog,
	}
}

func (w *Reaper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting reaper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reaper")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Reaper) tick(ctx context.Context) {
	n, err := w.jobs.RequeueStale(ctx, time.Now().Add(-w.staleAfter))
	if err != nil {
		w.log.Error().Err(err).Msg("stale requeue error")
	}
	if n > 0 {
		metrics.IncRequeued(n)
		w.log.Info().Int("count", n).Msg("stale claims recovered")
	}

	if depth, err := w.jobs.CountByStatus(ctx, model.RenderJobStatusPending); err == nil {
		metrics.SetQueueDepth(depth)
	}

	w.sweepWorkDir()
}

// sweepWorkDir removes render directories older than twice the stale window.
// A live render touches its directory constantly, so anything that old
// belongs to a crashed worker.
func (w *Reaper) sweepWorkDir() {
	if w.workDir == "" {
		return
	}
	entries, err := os.ReadDir(w.workDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-2 * w.staleAfter)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(w.workDir, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			w.log.Warn().Err(err).Str("dir", dir).Msg("workdir sweep failed")
		} else {
			w.log.Debug().Str("dir", dir).Msg("stale render dir removed")
		}
	}
}
