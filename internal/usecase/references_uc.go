package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
)

// Compile-time check
var _ ReferencesUseCase = (*referencesUC)(nil)

type ReferencesUseCase interface {
	// Collect gathers further-reading material for a question: reference
	// videos from search and reference articles from the model.
	Collect(ctx context.Context, question string) (refVideos, refArticles []model.Link, err error)
}

type referencesUC struct {
	searcher   adapter.VideoSearcher
	ai         adapter.AIServiceAdapter
	model      string
	maxResults int
	log        *zerolog.Logger
}

func NewReferencesUseCase(searcher adapter.VideoSearcher, ai adapter.AIServiceAdapter, modelName string, maxResults int, log *zerolog.Logger) *referencesUC {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &referencesUC{searcher: searcher, ai: ai, model: modelName, maxResults: maxResults, log: log}
}

func (r *referencesUC) Collect(ctx context.Context, question string) ([]model.Link, []model.Link, error) {
	videos, err := r.searcher.SearchVideos(ctx, question, r.maxResults)
	if err != nil {
		return nil, nil, err
	}

	// Articles are best effort; a malformed model reply must not fail the job.
	articles := r.articles(ctx, question)
	return videos, articles, nil
}

const articlesPrompt = `List %d high-quality articles or tutorials that explain: %s
Respond with a JSON array only, each element {"title": "...", "url": "..."}. No other text.`

func (r *referencesUC) articles(ctx context.Context, question string) []model.Link {
	reply, err := r.ai.Chat(ctx, r.model, []adapter.Message{
		{Role: "user", Content: fmt.Sprintf(articlesPrompt, r.maxResults, question)},
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("article references skipped")
		return nil
	}

	links := parseLinks(reply)
	if len(links) > r.maxResults {
		links = links[:r.maxResults]
	}
	if len(links) == 0 {
		r.log.Warn().Msg("article references unparseable")
	}
	return links
}

// parseLinks accepts either a bare JSON array or one buried in a fenced
// block, and falls back to "Title - URL" lines.
func parseLinks(reply string) []model.Link {
	text := strings.TrimSpace(reply)
	if i := strings.Index(text, "["); i >= 0 {
		if j := strings.LastIndex(text, "]"); j > i {
			var links []model.Link
			if err := json.Unmarshal([]byte(text[i:j+1]), &links); err == nil {
				return dropInvalid(links)
			}
		}
	}

	var links []model.Link
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " - ", 2)
		if len(parts) != 2 {
			continue
		}
		url := strings.TrimSpace(parts[1])
		if strings.HasPrefix(url, "http") {
			links = append(links, model.Link{Title: strings.TrimSpace(parts[0]), URL: url})
		}
	}
	return dropInvalid(links)
}

func dropInvalid(links []model.Link) []model.Link {
	out := links[:0]
	for _, l := range links {
		if l.URL != "" && strings.HasPrefix(l.URL, "http") {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
