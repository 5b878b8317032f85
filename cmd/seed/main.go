// Command seed embeds the markdown knowledge base and upserts it into
// postgres. Sections already present are skipped unless -force is set, so
// re-running after adding a doc only embeds the new sections.
package main

import (
	"context"
	"flag"
	"log"

	"qa-explainer-video/internal/config"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
	aiAdapters "qa-explainer-video/internal/infra/adapters/ai"
	pg "qa-explainer-video/internal/infra/db/postgres"
	"qa-explainer-video/internal/infra/kb"
	"qa-explainer-video/internal/infra/logging"
)

const embedBatch = 32

func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	source := flag.String("source", "", "markdown file or directory (default: kb.source from config)")
	force := flag.Bool("force", false, "re-embed sections that already exist")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	src := cfg.KB.Source
	if *source != "" {
		src = *source
	}
	if src == "" {
		logger.Fatal().Msg("no source: set kb.source or pass -source")
	}

	sections, err := kb.LoadSections(src)
	if err != nil {
		logger.Fatal().Err(err).Str("source", src).Msg("load sections")
	}
	if len(sections) == 0 {
		logger.Warn().Str("source", src).Msg("no sections found, nothing to do")
		return
	}

	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	repo := pg.NewKBSectionRepo(pool)

	if !*force {
		existing, err := repo.ListIDs(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("list existing sections")
		}
		seen := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			seen[id] = struct{}{}
		}
		fresh := sections[:0]
		for _, s := range sections {
			if _, ok := seen[s.ID]; !ok {
				fresh = append(fresh, s)
			}
		}
		sections = fresh
	}
	if len(sections) == 0 {
		logger.Info().Msg("knowledge base already up to date")
		return
	}

	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.EmbeddingModel, cfg.AI.MaxOutputTokens)
	default:
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.EmbeddingModel)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("ai adapter")
	}

	for start := 0; start < len(sections); start += embedBatch {
		end := start + embedBatch
		if end > len(sections) {
			end = len(sections)
		}
		batch := sections[start:end]

		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.Body
		}
		vecs, err := ai.Embed(ctx, cfg.AI.EmbeddingModel, texts)
		if err != nil {
			logger.Fatal().Err(err).Msg("embed batch")
		}
		if len(vecs) != len(batch) {
			logger.Fatal().Int("want", len(batch)).Int("got", len(vecs)).Msg("embedding count mismatch")
		}
		for i := range batch {
			batch[i].Embedding = model.Normalize(vecs[i])
		}
		if err := repo.Upsert(ctx, nil, batch); err != nil {
			logger.Fatal().Err(err).Msg("upsert batch")
		}
		logger.Info().Int("sections", len(batch)).Msg("batch seeded")
	}
	logger.Info().Int("total", len(sections)).Str("source", src).Msg("knowledge base seeded")
}
