package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o750); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes := make(chan []string, 16)
	w := NewWatcher(WithWatchDelay(10*time.Millisecond), WithIgnore(out), WithWatchLogger(discard))
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, []string{dir}, func(_ context.Context, paths []string) {
			changes <- paths
		})
	}()

	page := filepath.Join(dir, "page.html")
	ignoredPage := filepath.Join(out, "page.html")
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// The watcher registers asynchronously, so keep touching the files
	// until a change is reported.
	var got []string
wait:
	for {
		select {
		case got = <-changes:
			break wait
		case <-ticker.C:
			writeFile(t, ignoredPage, "x")
			writeFile(t, filepath.Join(dir, "notes.txt"), "x")
			writeFile(t, page, "x")
		case <-ctx.Done():
			t.Fatal("no change reported")
		}
	}

	if !slices.Equal(got, []string{page}) {
		t.Errorf("changes = %v, want [%s]", got, page)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestWatcherMissingDir(t *testing.T) {
	t.Parallel()

	w := NewWatcher(WithWatchLogger(discard))
	err := w.Watch(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, func(context.Context, []string) {})
	if err == nil {
		t.Error("Watch() accepted a missing directory")
	}
}
