package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"qa-explainer-video/internal/config"
	"qa-explainer-video/internal/domain/ports/adapter"
	aiAdapters "qa-explainer-video/internal/infra/adapters/ai"
	"qa-explainer-video/internal/infra/adapters/render"
	"qa-explainer-video/internal/infra/adapters/search"
	"qa-explainer-video/internal/infra/api"
	pg "qa-explainer-video/internal/infra/db/postgres"
	"qa-explainer-video/internal/infra/kb"
	"qa-explainer-video/internal/infra/logging"
	"qa-explainer-video/internal/infra/metrics"
	red "qa-explainer-video/internal/infra/redis"
	"qa-explainer-video/internal/infra/sched"
	"qa-explainer-video/internal/infra/storage"
	wk "qa-explainer-video/internal/infra/worker"
	"qa-explainer-video/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI without keys)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	jobsRepo := pg.NewRenderJobRepo(pool, tm)
	kbRepo := pg.NewKBSectionRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)
	resultCache := red.NewResultCache(redisClient, cfg.Redis.TTL)

	// ---- AI adapter ----
	aiAdapter := buildAI(ctx, cfg, logger)
	aiAdapter = aiAdapters.NewLimitedAI(aiAdapter, cfg.AI.ConcurrentLimit)

	// ---- Storage ----
	var store adapter.MediaStore
	localDir := ""
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewMinioStore(ctx, &cfg.Storage.S3)
		if err != nil {
			logger.Fatal().Err(err).Msg("minio")
		}
	default:
		ls, err := storage.NewLocalStore(cfg.Storage.Local.Dir)
		if err != nil {
			logger.Fatal().Err(err).Msg("local storage")
		}
		store = ls
		localDir = ls.Dir()
	}

	// ---- Pipeline ----
	if cfg.TTS.ElevenKey == "" {
		logger.Warn().Msg("tts.eleven_key not set; renders will have no narration")
	}
	retriever := kb.NewRetriever(kbRepo, aiAdapter, cfg.AI.EmbeddingModel, cfg.KB.TopK)
	scriptUC := usecase.NewScriptUseCase(aiAdapter, retriever, cfg.AI.DefaultModel, cfg.TTS.VoiceID, cfg.AI.ScriptAttempts)
	searcher := search.NewYouTubeSearcher(cfg.Search.YouTubeKey)
	refsUC := usecase.NewReferencesUseCase(searcher, aiAdapter, cfg.AI.DefaultModel, cfg.Search.MaxResults, logger)
	renderer := render.NewManimRenderer(&cfg.Renderer, &cfg.TTS, logger)
	explainerUC := usecase.NewExplainerUseCase(jobsRepo, locker, resultCache, store, cfg.Worker.MaxAttempts, logger)

	// ---- Workers ----
	workerPool := wk.NewPool(cfg.Worker.Count, logger)
	workerPool.Start(ctx)
	processor := wk.NewRenderJobProcessor(jobsRepo, scriptUC, refsUC, renderer, store, resultCache, cfg.Worker.PollInterval, logger)
	go processor.Start(ctx, workerPool)

	reaper := sched.NewReaper(time.Minute, cfg.Worker.StaleAfter, cfg.Renderer.WorkDir, jobsRepo, logger)
	go func() { _ = reaper.Run(ctx) }()

	// ---- HTTP ----
	srv := api.NewServer(explainerUC, rateLimiter, cfg.Server.SubmitPerMinute, cfg.Admin.JWTSecret, localDir, cfg.Server.RequestTimeout, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Routes()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	workerPool.Stop()
}

// buildAI picks providers by configured keys: Gemini preferred, OpenAI as
// the second provider, noop only in dev with no keys at all.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.AIServiceAdapter {
	byProvider := map[string]adapter.AIServiceAdapter{}

	if cfg.AI.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.EmbeddingModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = aiAdapters.NewMeteredAI(g, "gemini")
	}
	if cfg.AI.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.EmbeddingModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = aiAdapters.NewMeteredAI(o, "openai")
	}

	switch {
	case len(byProvider) == 0 && cfg.Runtime.Dev:
		logger.Warn().Msg("no AI provider configured; using noop adapter")
		return aiAdapters.NewNoopAIAdapter()
	case len(byProvider) == 0:
		logger.Fatal().Msg("no AI provider configured: set ai.gemini_key or ai.openai_key")
	}

	defaultProvider := "gemini"
	if _, ok := byProvider["gemini"]; !ok {
		defaultProvider = "openai"
	}
	logger.Info().Str("provider", defaultProvider).Str("model", cfg.AI.DefaultModel).Msg("AI adapter ready")
	return aiAdapters.NewMultiAIAdapter(defaultProvider, byProvider, nil)
}
