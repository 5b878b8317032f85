package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/infra/storage"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()

	t.Run("PutBytes then GetBytes round trip", func(t *testing.T) {
		s, err := storage.NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}

		url, err := s.PutBytes(ctx, "abc.json", []byte(`{"ok":true}`), "application/json")
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if url != "/videos/abc.json" {
			t.Fatalf("unexpected url %q", url)
		}

		data, err := s.GetBytes(ctx, "abc.json")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(data) != `{"ok":true}` {
			t.Fatalf("unexpected data %q", data)
		}

		ok, err := s.Exists(ctx, "abc.json")
		if err != nil || !ok {
			t.Fatalf("exists: ok=%v err=%v", ok, err)
		}
	})

	t.Run("PutFile copies the artifact in", func(t *testing.T) {
		s, err := storage.NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}

		src := filepath.Join(t.TempDir(), "render.mp4")
		if err := os.WriteFile(src, []byte("video-bytes"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := s.PutFile(ctx, "job.mp4", src, "video/mp4"); err != nil {
			t.Fatalf("put file: %v", err)
		}
		data, err := s.GetBytes(ctx, "job.mp4")
		if err != nil || string(data) != "video-bytes" {
			t.Fatalf("round trip failed: %q %v", data, err)
		}
	})

	t.Run("missing key is ErrNotFound and Exists false", func(t *testing.T) {
		s, err := storage.NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}

		if _, err := s.GetBytes(ctx, "nope.mp4"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		ok, err := s.Exists(ctx, "nope.mp4")
		if err != nil || ok {
			t.Fatalf("exists should be false, ok=%v err=%v", ok, err)
		}
	})

	t.Run("rejects traversal keys", func(t *testing.T) {
		s, err := storage.NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.PutBytes(ctx, "../escape.json", []byte("x"), "application/json"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
