package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/repository"
)

// --- fakes ---

type memJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*model.RenderJob
	touches int
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{jobs: map[string]*model.RenderJob{}} }

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.RenderJob, error) {
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == model.RenderJobStatusPending {
			j.Status = model.RenderJobStatusProcessing
			j.Attempts++
			j.StartedAt = time.Now()
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) Touch(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.UpdatedAt = time.Now()
	}
	m.touches++
	return nil
}

func (m *memJobRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

func (m *memJobRepo) CountByStatus(ctx context.Context, status model.RenderJobStatus) (int, error) {
	return 0, nil
}

func (m *memJobRepo) List(ctx context.Context, limit int) ([]*model.RenderJob, error) {
	return nil, nil
}

type fakeScripts struct {
	err   error
	delay time.Duration
}

func (f *fakeScripts) Generate(ctx context.Context, question, userAnswer string) (*model.SceneScript, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.SceneScript{Code: "class S(VoiceoverScene):\n    pass", SceneName: "S", VoiceID: "v"}, nil
}

type fakeRefs struct {
	err error
}

func (f *fakeRefs) Collect(ctx context.Context, question string) ([]model.Link, []model.Link, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return []model.Link{{Title: "ref", URL: "https://youtube/x"}},
		[]model.Link{{Title: "article", URL: "https://example/a"}}, nil
}

type fakeRenderer struct {
	dir      string
	err      error
	cleanups int
}

func (f *fakeRenderer) Render(ctx context.Context, jobKey string, script *model.SceneScript) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	p := filepath.Join(f.dir, jobKey+".mp4")
	if err := os.WriteFile(p, []byte("video"), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func (f *fakeRenderer) Cleanup(jobKey string) { f.cleanups++ }

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	failOn  string
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	return s.PutBytes(ctx, key, data, contentType)
}

func (s *memStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.failOn {
		return "", domain.ErrUploadFailed
	}
	s.objects[key] = data
	s.puts = append(s.puts, key)
	return "/videos/" + key, nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *memStore) URL(ctx context.Context, key string) (string, error) {
	return "/videos/" + key, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]*model.Sidecar
}

func newMemCache() *memCache { return &memCache{data: map[string]*model.Sidecar{}} }

func (c *memCache) Store(ctx context.Context, jobKey string, sc *model.Sidecar) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[jobKey] = sc
	return nil
}

func (c *memCache) Get(ctx context.Context, jobKey string) (*model.Sidecar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc, ok := c.data[jobKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sc, nil
}

// --- tests ---

type procDeps struct {
	repo     *memJobRepo
	scripts  *fakeScripts
	refs     *fakeRefs
	renderer *fakeRenderer
	store    *memStore
	cache    *memCache
}

func newProcessor(t *testing.T, d *procDeps) *RenderJobProcessor {
	t.Helper()
	log := zerolog.Nop()
	return NewRenderJobProcessor(d.repo, d.scripts, d.refs, d.renderer, d.store, d.cache, time.Millisecond, &log)
}

func defaultDeps(t *testing.T) *procDeps {
	return &procDeps{
		repo:     newMemJobRepo(),
		scripts:  &fakeScripts{},
		refs:     &fakeRefs{},
		renderer: &fakeRenderer{dir: t.TempDir()},
		store:    newMemStore(),
		cache:    newMemCache(),
	}
}

func TestProcessOne_HappyPath(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	p := newProcessor(t, d)

	job := model.NewRenderJob("what is a fraction?", "part of a whole", 3)
	d.repo.Save(ctx, nil, job)

	if !p.ProcessOne(ctx) {
		t.Fatal("expected a job to be processed")
	}

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.LastError)
	}
	if got.VideoKey != model.VideoKey(job.Key) || got.VideoURL == "" {
		t.Fatalf("video fields not set: %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("finished_at not set")
	}

	// video must land before the sidecar
	if len(d.store.puts) != 2 || d.store.puts[0] != model.VideoKey(job.Key) || d.store.puts[1] != model.SidecarKey(job.Key) {
		t.Fatalf("upload order wrong: %v", d.store.puts)
	}

	data, err := d.store.GetBytes(ctx, model.SidecarKey(job.Key))
	if err != nil {
		t.Fatal(err)
	}
	sc, err := model.ParseSidecar(data)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Resources.Video.Title != model.SidecarTitle(job.Question) {
		t.Fatalf("sidecar title %q", sc.Resources.Video.Title)
	}
	if len(sc.Resources.RefVideos) != 1 || len(sc.Resources.RefArticles) != 1 {
		t.Fatalf("sidecar refs: %+v", sc.Resources)
	}

	if _, err := d.cache.Get(ctx, job.Key); err != nil {
		t.Fatal("completed sidecar should be cached")
	}
	if d.renderer.cleanups != 1 {
		t.Fatalf("expected 1 cleanup, got %d", d.renderer.cleanups)
	}
}

func TestProcessOne_RetryableFailureRequeues(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	d.renderer.err = domain.ErrRenderFailed
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)

	p.ProcessOne(ctx)

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusPending {
		t.Fatalf("retryable failure should requeue, status=%s", got.Status)
	}
	if got.Attempts != 1 || got.LastError == "" {
		t.Fatalf("attempt bookkeeping wrong: %+v", got)
	}
}

func TestProcessOne_ExhaustedAttemptsFail(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	d.renderer.err = domain.ErrRenderTimeout
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 2)
	job.Attempts = 1 // claim will bump to 2 == max
	d.repo.Save(ctx, nil, job)

	p.ProcessOne(ctx)

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusFailed {
		t.Fatalf("exhausted job should fail, status=%s", got.Status)
	}
}

func TestProcessOne_ShutdownCancellationReleasesClaim(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	d.scripts.err = context.Canceled
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)

	p.ProcessOne(ctx)

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusPending {
		t.Fatalf("cancelled job must go back to pending, status=%s (%s)", got.Status, got.LastError)
	}
	if got.Attempts != 0 {
		t.Fatalf("cancellation must hand the attempt back, attempts=%d", got.Attempts)
	}
}

func TestProcessOne_CancelledContextReleasesClaim(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := defaultDeps(t)
	d.renderer.err = domain.ErrRenderFailed
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)

	cancel()
	p.ProcessOne(ctx)

	// Even when the stage error itself looks retryable, a dead worker
	// context means release, not a spent attempt.
	got, _ := d.repo.FindByID(context.Background(), nil, job.ID)
	if got.Status != model.RenderJobStatusPending || got.Attempts != 0 {
		t.Fatalf("job should be released untouched: %+v", got)
	}
}

func TestProcessOne_ProviderOutageRequeues(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	d.scripts.err = domain.ErrAIUnavailable
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)

	p.ProcessOne(ctx)

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusPending {
		t.Fatalf("provider outage should requeue, status=%s (%s)", got.Status, got.LastError)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d", got.Attempts)
	}
}

func TestProcessOne_HeartbeatKeepsClaimFresh(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	d.scripts.delay = 50 * time.Millisecond
	p := newProcessor(t, d)
	p.heartbeat = 5 * time.Millisecond

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)

	p.ProcessOne(ctx)

	d.repo.mu.Lock()
	touches := d.repo.touches
	d.repo.mu.Unlock()
	if touches == 0 {
		t.Fatal("long-running job should refresh its claim")
	}
}

func TestProcessOne_ScriptErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	d.scripts.err = domain.ErrBadScript
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)

	p.ProcessOne(ctx)

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusFailed {
		t.Fatalf("script error should fail immediately, status=%s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d", got.Attempts)
	}
}

func TestProcessOne_UploadFailureRequeues(t *testing.T) {
	ctx := context.Background()
	d := defaultDeps(t)
	p := newProcessor(t, d)

	job := model.NewRenderJob("q", "a", 3)
	d.repo.Save(ctx, nil, job)
	d.store.failOn = model.VideoKey(job.Key)

	p.ProcessOne(ctx)

	got, _ := d.repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.RenderJobStatusPending {
		t.Fatalf("upload failure should requeue, status=%s", got.Status)
	}
	if _, err := d.store.GetBytes(ctx, model.SidecarKey(job.Key)); err == nil {
		t.Fatal("sidecar must not exist when the video upload failed")
	}
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	d := defaultDeps(t)
	p := newProcessor(t, d)
	if p.ProcessOne(context.Background()) {
		t.Fatal("nothing to process")
	}
}
