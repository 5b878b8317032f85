// Command worker runs the render pipeline without the API server and exits.
// With a question/answer pair as arguments it enqueues that prompt, renders
// it, and exits 0 on success or 1 on failure; without arguments it drains
// whatever is pending. Useful for cron setups and external job runners.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qa-explainer-video/internal/config"
	"qa-explainer-video/internal/domain/model"
	aiAdapters "qa-explainer-video/internal/infra/adapters/ai"
	"qa-explainer-video/internal/infra/adapters/render"
	"qa-explainer-video/internal/infra/adapters/search"
	pg "qa-explainer-video/internal/infra/db/postgres"
	"qa-explainer-video/internal/infra/kb"
	"qa-explainer-video/internal/infra/logging"
	"qa-explainer-video/internal/infra/metrics"
	red "qa-explainer-video/internal/infra/redis"
	"qa-explainer-video/internal/infra/storage"
	wk "qa-explainer-video/internal/infra/worker"
	"qa-explainer-video/internal/usecase"

	"qa-explainer-video/internal/domain/ports/adapter"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	maxJobs := flag.Int("max", 0, "stop after N jobs (0 = drain the queue)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)
	metrics.MustRegister()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info().Msg("interrupt: finishing current job")
		cancel()
	}()

	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)
	jobsRepo := pg.NewRenderJobRepo(pool, tm)
	kbRepo := pg.NewKBSectionRepo(pool)

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	resultCache := red.NewResultCache(redisClient, cfg.Redis.TTL)

	var ai adapter.AIServiceAdapter
	provider := "openai"
	switch {
	case cfg.AI.GeminiKey != "":
		provider = "gemini"
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.EmbeddingModel, cfg.AI.MaxOutputTokens)
	default:
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.EmbeddingModel)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("ai adapter")
	}
	ai = aiAdapters.NewLimitedAI(aiAdapters.NewMeteredAI(ai, provider), cfg.AI.ConcurrentLimit)

	var store adapter.MediaStore
	if cfg.Storage.Backend == "s3" {
		store, err = storage.NewMinioStore(ctx, &cfg.Storage.S3)
	} else {
		store, err = storage.NewLocalStore(cfg.Storage.Local.Dir)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}

	retriever := kb.NewRetriever(kbRepo, ai, cfg.AI.EmbeddingModel, cfg.KB.TopK)
	scripts := usecase.NewScriptUseCase(ai, retriever, cfg.AI.DefaultModel, cfg.TTS.VoiceID, cfg.AI.ScriptAttempts)
	refs := usecase.NewReferencesUseCase(search.NewYouTubeSearcher(cfg.Search.YouTubeKey), ai, cfg.AI.DefaultModel, cfg.Search.MaxResults, logger)
	renderer := render.NewManimRenderer(&cfg.Renderer, &cfg.TTS, logger)

	proc := wk.NewRenderJobProcessor(jobsRepo, scripts, refs, renderer, store, resultCache, cfg.Worker.PollInterval, logger)

	var target *model.RenderJob
	if args := flag.Args(); len(args) == 2 {
		target = model.NewRenderJob(args[0], args[1], cfg.Worker.MaxAttempts)
		if err := jobsRepo.Save(ctx, nil, target); err != nil {
			logger.Fatal().Err(err).Msg("enqueue prompt")
		}
		logger.Info().Str("job_id", target.ID).Str("job_key", target.Key).Msg("prompt enqueued")
	} else if len(args) != 0 {
		logger.Fatal().Msg(`usage: worker [flags] ["question" "user answer"]`)
	}

	done := 0
	for ctx.Err() == nil && proc.ProcessOne(ctx) {
		done++
		if *maxJobs > 0 && done >= *maxJobs {
			break
		}
	}
	logger.Info().Int("jobs", done).Msg("queue drained")

	if target != nil {
		final, err := jobsRepo.FindByID(context.Background(), nil, target.ID)
		if err != nil || final.Status != model.RenderJobStatusCompleted {
			logger.Error().Err(err).Msg("prompt did not complete")
			os.Exit(1)
		}
		logger.Info().Str("video_url", final.VideoURL).Msg("prompt completed")
	}
}
