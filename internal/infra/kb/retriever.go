package kb

import (
	"context"
	"sort"
	"sync"
	"time"

	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
	"qa-explainer-video/internal/domain/ports/repository"
)

const cacheRefresh = 5 * time.Minute

// Retriever ranks documentation sections against a query by cosine
// similarity. The corpus is loaded from postgres once and cached; only the
// query is embedded per call.
type Retriever struct {
	repo       repository.KBSectionRepository
	ai         adapter.AIServiceAdapter
	embedModel string
	topK       int

	mu       sync.Mutex
	sections []model.KBSection
	loadedAt time.Time
}

func NewRetriever(repo repository.KBSectionRepository, ai adapter.AIServiceAdapter, embedModel string, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{repo: repo, ai: ai, embedModel: embedModel, topK: topK}
}

func (r *Retriever) corpus(ctx context.Context) ([]model.KBSection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sections != nil && time.Since(r.loadedAt) < cacheRefresh {
		return r.sections, nil
	}
	sections, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		model.Normalize(sections[i].Embedding)
	}
	r.sections = sections
	r.loadedAt = time.Now()
	return sections, nil
}

// TopK returns the most similar sections, best first. An empty corpus is
// not an error; script generation just proceeds without context.
func (r *Retriever) TopK(ctx context.Context, query string) ([]model.KBSection, error) {
	sections, err := r.corpus(ctx)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, nil
	}

	vecs, err := r.ai.Embed(ctx, r.embedModel, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	q := model.Normalize(vecs[0])

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(sections))
	for i := range sections {
		ranked = append(ranked, scored{idx: i, score: model.Dot(sections[i].Embedding, q)})
	}
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	n := r.topK
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]model.KBSection, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, sections[s.idx])
	}
	return out, nil
}
