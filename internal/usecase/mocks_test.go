package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/adapter"
	"qa-explainer-video/internal/domain/ports/repository"
)

// --- render job repository ---

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.RenderJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.RenderJob{}}
}

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
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *model.RenderJob
	for _, j := range m.jobs {
		if j.Key != key {
			continue
		}
		if newest == nil || j.CreatedAt.After(newest.CreatedAt) {
			newest = j
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *memJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.RenderJob
	for _, j := range m.jobs {
		if j.Status != model.RenderJobStatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = model.RenderJobStatusProcessing
	oldest.Attempts++
	oldest.StartedAt = time.Now()
	cp := *oldest
	return &cp, nil
}

func (m *memJobRepo) Touch(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memJobRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status != model.RenderJobStatusProcessing || !j.UpdatedAt.Before(cutoff) {
			continue
		}
		if j.Attempts >= j.MaxAttempts {
			j.Status = model.RenderJobStatusFailed
			j.LastError = "worker lost"
		} else {
			j.Status = model.RenderJobStatusPending
		}
		n++
	}
	return n, nil
}

func (m *memJobRepo) CountByStatus(ctx context.Context, status model.RenderJobStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memJobRepo) List(ctx context.Context, limit int) ([]*model.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RenderJob
	for _, j := range m.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- locker ---

type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	locks  int
	busyOn string
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] || key == l.busyOn {
		return "", domain.ErrJobBusy
	}
	l.held[key] = true
	l.locks++
	return "token-" + key, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// --- result cache ---

type memResultCache struct {
	mu   sync.Mutex
	data map[string]*model.Sidecar
}

func newMemResultCache() *memResultCache {
	return &memResultCache{data: map[string]*model.Sidecar{}}
}

func (c *memResultCache) Store(ctx context.Context, jobKey string, sc *model.Sidecar) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[jobKey] = sc
	return nil
}

func (c *memResultCache) Get(ctx context.Context, jobKey string) (*model.Sidecar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc, ok := c.data[jobKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sc, nil
}

// --- media store ---

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	failPut bool
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	return s.PutBytes(ctx, key, []byte("file:"+localPath), contentType)
}

func (s *memStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
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

// --- AI adapter ---

// scriptedAI returns queued replies in order, then repeats the last one.
type scriptedAI struct {
	mu      sync.Mutex
	replies []string
	calls   int
	err     error
	prompts [][]adapter.Message
}

func (a *scriptedAI) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (a *scriptedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (a *scriptedAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.prompts = append(a.prompts, messages)
	i := a.calls
	a.calls++
	if i >= len(a.replies) {
		i = len(a.replies) - 1
	}
	if i < 0 {
		return "", fmt.Errorf("scriptedAI: no replies queued")
	}
	return a.replies[i], nil
}

func (a *scriptedAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	reply, err := a.Chat(ctx, model, messages)
	return reply, adapter.Usage{}, err
}

func (a *scriptedAI) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// --- video searcher ---

type stubSearcher struct {
	links []model.Link
	err   error
}

func (s *stubSearcher) SearchVideos(ctx context.Context, query string, n int) ([]model.Link, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.links, nil
}

// --- kb retriever ---

type stubRetriever struct {
	sections []model.KBSection
}

func (r *stubRetriever) TopK(ctx context.Context, query string) ([]model.KBSection, error) {
	return r.sections, nil
}
