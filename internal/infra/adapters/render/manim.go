package render

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"qa-explainer-video/internal/config"
	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
	"qa-explainer-video/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.SceneRenderer = (*ManimRenderer)(nil)

// ManimRenderer shells out to the manim CLI. Each job renders inside
// <workDir>/<jobKey>/ so concurrent renders never share files. The
// ElevenLabs key goes in through the environment: the voiceover service
// inside the scene script reads it, not us.
type ManimRenderer struct {
	cfg *config.RendererConfig
	tts *config.TTSConfig
	log *zerolog.Logger
}

func NewManimRenderer(cfg *config.RendererConfig, tts *config.TTSConfig, log *zerolog.Logger) *ManimRenderer {
	return &ManimRenderer{cfg: cfg, tts: tts, log: log}
}

func (r *ManimRenderer) jobDir(jobKey string) string {
	return filepath.Join(r.cfg.WorkDir, jobKey)
}

func (r *ManimRenderer) args(scriptPath, sceneName, mediaDir string) []string {
	return []string{
		fmt.Sprintf("-q%s", r.cfg.Quality),
		"--fps", fmt.Sprintf("%d", r.cfg.FPS),
		"--resolution", r.cfg.Resolution,
		scriptPath,
		sceneName,
		"--media_dir", mediaDir,
	}
}

func (r *ManimRenderer) Render(ctx context.Context, jobKey string, script *model.SceneScript) (string, error) {
	dir := r.jobDir(jobKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	scriptPath := filepath.Join(dir, "scene.py")
	if err := os.WriteFile(scriptPath, []byte(script.Code), 0o644); err != nil {
		return "", fmt.Errorf("write scene script: %w", err)
	}
	mediaDir := filepath.Join(dir, "media")

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Binary, r.args(scriptPath, script.SceneName, mediaDir)...)
	cmd.Env = append(os.Environ(), "ELEVEN_API_KEY="+r.tts.ElevenKey)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.log.Debug().Str("job_key", jobKey).Str("scene", script.SceneName).Msg("starting manim render")

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.IncRenderFailure("timeout")
			return "", fmt.Errorf("%w: after %s", domain.ErrRenderTimeout, r.cfg.Timeout)
		}
		metrics.IncRenderFailure("exit")
		return "", fmt.Errorf("%w: %v: %s", domain.ErrRenderFailed, err, tail(stderr.String(), 2000))
	}

	out, err := locateOutput(mediaDir)
	if err != nil {
		metrics.IncRenderFailure("no_output")
		return "", err
	}
	return out, nil
}

func (r *ManimRenderer) Cleanup(jobKey string) {
	if err := os.RemoveAll(r.jobDir(jobKey)); err != nil {
		r.log.Warn().Err(err).Str("job_key", jobKey).Msg("cleanup failed")
	}
}

// locateOutput finds the rendered mp4 under manim's media tree
// (media/videos/<script>/<resolution>/<Scene>.mp4). The newest mp4 wins if
// partial movie files are around.
func locateOutput(mediaDir string) (string, error) {
	var newest string
	var newestMod int64
	err := filepath.WalkDir(mediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if d.Name() == "partial_movie_files" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".mp4") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = path, mod
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if newest == "" {
		return "", fmt.Errorf("%w: no mp4 produced under %s", domain.ErrRenderFailed, mediaDir)
	}
	return newest, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}
