package asset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDirOpenProbesExtensions(t *testing.T) {
	dir := t.TempDir()
	if errWrite := os.WriteFile(filepath.Join(dir, "tuzemak.png"), []byte("png-bytes"), 0600); errWrite != nil {
		t.Fatalf("write asset: %v", errWrite)
	}

	store := NewDir(dir)
	rc, errOpen := store.Open(context.Background(), "tuzemak")
	if errOpen != nil {
		t.Fatalf("expected asset, got %v", errOpen)
	}
	defer rc.Close()
	data, errRead := io.ReadAll(rc)
	if errRead != nil {
		t.Fatalf("read asset: %v", errRead)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected asset bytes %q", data)
	}
}

func TestDirOpenMissingKey(t *testing.T) {
	store := NewDir(t.TempDir())
	if _, errOpen := store.Open(context.Background(), "nope"); !errors.Is(errOpen, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errOpen)
	}
}

func TestDirOpenRejectsPathKeys(t *testing.T) {
	store := NewDir(t.TempDir())
	for _, key := range []string{"", "..", "../etc", "a/b", `a\b`} {
		if _, errOpen := store.Open(context.Background(), key); !errors.Is(errOpen, ErrNotFound) {
			t.Fatalf("key %q: expected ErrNotFound, got %v", key, errOpen)
		}
	}
}

func TestDirOpenObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewDir(t.TempDir())
	if _, errOpen := store.Open(ctx, "tuzemak"); !errors.Is(errOpen, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", errOpen)
	}
}
