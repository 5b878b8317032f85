package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
)

// Compile-time check
var _ ScriptUseCase = (*scriptUC)(nil)

// KBRetriever supplies documentation context for script prompts.
type KBRetriever interface {
	TopK(ctx context.Context, query string) ([]model.KBSection, error)
}

type ScriptUseCase interface {
	// Generate produces a validated manim voiceover script for a
	// question/answer pair, retrying generation with error feedback when
	// the model returns something unusable.
	Generate(ctx context.Context, question, userAnswer string) (*model.SceneScript, error)
}

type scriptUC struct {
	ai       adapter.AIServiceAdapter
	kb       KBRetriever
	model    string
	voiceID  string
	attempts int
}

func NewScriptUseCase(ai adapter.AIServiceAdapter, kb KBRetriever, modelName, voiceID string, attempts int) *scriptUC {
	if attempts <= 0 {
		attempts = 3
	}
	return &scriptUC{ai: ai, kb: kb, model: modelName, voiceID: voiceID, attempts: attempts}
}

const scriptSystemPrompt = `You write manim community edition scripts that explain a concept to a student.
Rules:
- Output exactly one python code block and nothing else.
- Define exactly one class inheriting from VoiceoverScene.
- In construct(), first call self.set_speech_service(ElevenLabsService(voice_id=%q)).
- Wrap every animation in a with self.voiceover(text=...) block so narration and visuals stay in sync.
- Keep the video under 60 seconds of narration.
- Do not read files, use the network, or import anything beyond manim and manim_voiceover.`

func (s *scriptUC) Generate(ctx context.Context, question, userAnswer string) (*model.SceneScript, error) {
	topic := buildTopic(question, userAnswer)

	kbBlock := ""
	if s.kb != nil {
		sections, err := s.kb.TopK(ctx, topic)
		if err == nil && len(sections) > 0 {
			var b strings.Builder
			b.WriteString("Reference documentation:\n")
			for _, sec := range sections {
				b.WriteString(sec.Body)
				b.WriteString("\n\n")
			}
			kbBlock = b.String()
		}
	}

	msgs := []adapter.Message{
		{Role: "system", Content: fmt.Sprintf(scriptSystemPrompt, s.voiceID)},
		{Role: "user", Content: strings.TrimSpace(kbBlock + "\n" + topic)},
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		reply, err := s.ai.Chat(ctx, s.model, msgs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			// Provider outages (network, 429, 5xx) are transient, not a
			// verdict on the prompt.
			return nil, fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
		}

		script, err := model.NewSceneScript(reply, s.voiceID)
		if err == nil {
			return script, nil
		}
		lastErr = err

		// Feed the failure back so the next attempt can correct it.
		msgs = append(msgs,
			adapter.Message{Role: "assistant", Content: reply},
			adapter.Message{Role: "user", Content: fmt.Sprintf(
				"That script is not usable (%v). Produce a corrected script following every rule.", err)},
		)
	}

	if errors.Is(lastErr, domain.ErrNoSceneClass) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %d attempts exhausted: %v", domain.ErrBadScript, s.attempts, lastErr)
}

func buildTopic(question, userAnswer string) string {
	return fmt.Sprintf("Question: %s\nStudent answer: %s\nExplain the underlying concept and where the answer goes right or wrong.", question, userAnswer)
}
