package ai

import (
	"context"
	"time"

	"qa-explainer-video/internal/domain/ports/adapter"
	"qa-explainer-video/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*meteredAI)(nil)

// meteredAI records token usage and call latency per provider. Chat calls go
// through ChatWithUsage on the inner adapter so plain Chat is metered too.
type meteredAI struct {
	inner    adapter.AIServiceAdapter
	provider string
}

func NewMeteredAI(inner adapter.AIServiceAdapter, provider string) adapter.AIServiceAdapter {
	return &meteredAI{inner: inner, provider: provider}
}

func (m *meteredAI) ListModels(ctx context.Context) ([]string, error) {
	return m.inner.ListModels(ctx)
}

func (m *meteredAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return m.inner.CountTokens(ctx, model, messages)
}

func (m *meteredAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := m.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (m *meteredAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	start := time.Now()
	reply, usage, err := m.inner.ChatWithUsage(ctx, model, messages)
	metrics.ObserveAIUsage(m.provider, model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		int(time.Since(start).Milliseconds()), err == nil)
	return reply, usage, err
}

func (m *meteredAI) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := m.inner.Embed(ctx, model, texts)
	metrics.ObserveAIUsage(m.provider, model, 0, 0, 0,
		int(time.Since(start).Milliseconds()), err == nil)
	return vecs, err
}
