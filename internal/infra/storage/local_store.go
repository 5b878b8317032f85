package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/ports/adapter"
)

var _ adapter.MediaStore = (*LocalStore)(nil)

// LocalStore keeps artifacts in a directory on disk. URLs are paths under
// /videos/ that the HTTP server serves from the same directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

// Dir is where artifacts live; the API mounts it under /videos/.
func (s *LocalStore) Dir() string { return s.dir }

// path rejects keys that would escape the directory.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", domain.ErrInvalidArgument
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStore) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	defer src.Close()

	// Write to a temp name first so a reader never sees a half-copied file.
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return s.URL(ctx, key)
}

func (s *LocalStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return s.URL(ctx, key)
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	return "/videos/" + key, nil
}
