package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
)

const goodScript = "```python\n" + `from manim import *
from manim_voiceover import VoiceoverScene
from manim_voiceover.services.elevenlabs import ElevenLabsService

class FractionScene(VoiceoverScene):
    def construct(self):
        self.set_speech_service(ElevenLabsService(voice_id="voice-1"))
        with self.voiceover(text="A fraction is part of a whole."):
            self.play(Create(Circle()))
` + "```"

func TestScriptGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid first reply is returned", func(t *testing.T) {
		ai := &scriptedAI{replies: []string{goodScript}}
		uc := NewScriptUseCase(ai, &stubRetriever{}, "gemini-2.0-flash", "voice-1", 3)

		script, err := uc.Generate(ctx, "what is a fraction?", "part of a whole")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if script.SceneName != "FractionScene" {
			t.Fatalf("scene name %q", script.SceneName)
		}
		if script.VoiceID != "voice-1" {
			t.Fatalf("voice id %q", script.VoiceID)
		}
		if ai.calls != 1 {
			t.Fatalf("expected 1 call, got %d", ai.calls)
		}
	})

	t.Run("bad reply retries with error feedback", func(t *testing.T) {
		ai := &scriptedAI{replies: []string{"no code here, sorry", goodScript}}
		uc := NewScriptUseCase(ai, &stubRetriever{}, "m", "voice-1", 3)

		script, err := uc.Generate(ctx, "q", "a")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if script == nil || ai.calls != 2 {
			t.Fatalf("expected success on attempt 2, calls=%d", ai.calls)
		}

		// the retry prompt must carry the failed reply and a correction ask
		last := ai.prompts[1]
		if len(last) < 4 {
			t.Fatalf("retry prompt too short: %d messages", len(last))
		}
		if last[len(last)-2].Role != "assistant" {
			t.Fatal("failed reply should be echoed back as assistant turn")
		}
		if !strings.Contains(last[len(last)-1].Content, "not usable") {
			t.Fatalf("correction ask missing: %q", last[len(last)-1].Content)
		}
	})

	t.Run("attempts exhausted is a fatal script error", func(t *testing.T) {
		ai := &scriptedAI{replies: []string{"still no code"}}
		uc := NewScriptUseCase(ai, &stubRetriever{}, "m", "v", 2)

		_, err := uc.Generate(ctx, "q", "a")
		if !errors.Is(err, domain.ErrNoSceneClass) && !errors.Is(err, domain.ErrBadScript) {
			t.Fatalf("expected script error, got %v", err)
		}
		if domain.Retryable(err) {
			t.Fatal("script errors must not be retryable at the job level")
		}
		if ai.calls != 2 {
			t.Fatalf("expected 2 attempts, got %d", ai.calls)
		}
	})

	t.Run("kb context lands in the prompt", func(t *testing.T) {
		ai := &scriptedAI{replies: []string{goodScript}}
		ret := &stubRetriever{sections: []model.KBSection{
			{ID: "doc.md::Timing", Body: "## Timing\nWrap animations in voiceover blocks."},
		}}
		uc := NewScriptUseCase(ai, ret, "m", "v", 3)

		if _, err := uc.Generate(ctx, "q", "a"); err != nil {
			t.Fatal(err)
		}
		prompt := ai.prompts[0][1].Content
		if !strings.Contains(prompt, "Wrap animations in voiceover blocks.") {
			t.Fatalf("kb section missing from prompt:\n%s", prompt)
		}
	})

	t.Run("provider outage is retryable", func(t *testing.T) {
		ai := &scriptedAI{err: errors.New("rate limited")}
		uc := NewScriptUseCase(ai, &stubRetriever{}, "m", "v", 3)

		_, err := uc.Generate(ctx, "q", "a")
		if !errors.Is(err, domain.ErrAIUnavailable) {
			t.Fatalf("transport failure should map to ErrAIUnavailable, got %v", err)
		}
		if !domain.Retryable(err) {
			t.Fatal("provider outages must requeue the job, not fail it")
		}
	})

	t.Run("cancellation is not masked as an outage", func(t *testing.T) {
		ai := &scriptedAI{err: context.Canceled}
		uc := NewScriptUseCase(ai, &stubRetriever{}, "m", "v", 3)

		_, err := uc.Generate(ctx, "q", "a")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if errors.Is(err, domain.ErrAIUnavailable) {
			t.Fatal("cancellation must stay distinguishable from a provider outage")
		}
	})
}
