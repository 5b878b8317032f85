package model

import (
	"regexp"
	"strings"

	"qa-explainer-video/internal/domain"
)

// SceneScript is a generated manim-voiceover script ready for rendering.
type SceneScript struct {
	Code      string
	SceneName string
	VoiceID   string
}

var (
	fenceRe = regexp.MustCompile("(?s)```python\\s*(.*?)```")
	sceneRe = regexp.MustCompile(`class\s+(\w+)\s*\(\s*VoiceoverScene\s*\)\s*:`)
)

// ExtractCode pulls the python block out of a markdown reply. Models are
// told to answer with a single fenced block; when they don't, the whole
// reply is taken as-is.
func ExtractCode(markdown string) string {
	if m := fenceRe.FindStringSubmatch(markdown); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(markdown)
}

// SceneName returns the VoiceoverScene subclass defined in code.
func SceneName(code string) (string, error) {
	m := sceneRe.FindStringSubmatch(code)
	if m == nil {
		return "", domain.ErrNoSceneClass
	}
	return m[1], nil
}

// NewSceneScript validates raw model output into a renderable script.
func NewSceneScript(raw, voiceID string) (*SceneScript, error) {
	code := ExtractCode(raw)
	if code == "" {
		return nil, domain.ErrBadScript
	}
	name, err := SceneName(code)
	if err != nil {
		return nil, err
	}
	// Exactly one scene class keeps the render target unambiguous.
	if len(sceneRe.FindAllString(code, -1)) > 1 {
		return nil, domain.ErrBadScript
	}
	return &SceneScript{Code: code, SceneName: name, VoiceID: voiceID}, nil
}
