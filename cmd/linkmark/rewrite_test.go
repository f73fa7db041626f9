package main

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/pipeline"
)

func TestRewriteCmd(t *testing.T) {
	t.Parallel()

	t.Run("rewrites a directory into out", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")
		src := t.TempDir()
		out := filepath.Join(t.TempDir(), "dist")
		writeTestFile(t, filepath.Join(src, "index.html"), testPage)
		writeTestFile(t, filepath.Join(src, "blog", "post.md"), "Read [this](https://other.org/page).\n")

		_, stderr, err := execute(t, "", site.args("rewrite", "--out", out, src)...)
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}

		if got := readTestFile(t, filepath.Join(out, "index.html")); !strings.Contains(got, testAnnotated) {
			t.Errorf("index.html not annotated:\n%s", got)
		}
		post := readTestFile(t, filepath.Join(out, "blog", "post.html"))
		if !strings.Contains(post, `class="selm-external-link"`) {
			t.Errorf("post.html not annotated:\n%s", post)
		}
		if strings.Count(stderr, "wrote: ") != 2 {
			t.Errorf("expected two written files, got:\n%s", stderr)
		}
		if got := readTestFile(t, filepath.Join(src, "index.html")); got != testPage {
			t.Errorf("source was modified:\n%s", got)
		}
	})

	t.Run("filters stdin", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")

		stdout, _, err := execute(t, testPage, site.args("rewrite", "-")...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, testAnnotated) {
			t.Errorf("stdout not annotated:\n%s", stdout)
		}
		if !strings.Contains(stdout, `<a href="/about">About</a>`) {
			t.Errorf("internal link changed:\n%s", stdout)
		}
	})

	t.Run("rewrites in place", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")
		path := filepath.Join(t.TempDir(), "page.html")
		writeTestFile(t, path, testPage)

		if _, _, err := execute(t, "", site.args("rewrite", path)...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first := readTestFile(t, path)
		if !strings.Contains(first, testAnnotated) {
			t.Fatalf("file not annotated:\n%s", first)
		}

		// A second run finds nothing left to change.
		_, stderr, err := execute(t, "", site.args("rewrite", path)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, "unchanged: ") {
			t.Errorf("expected unchanged report, got:\n%s", stderr)
		}
		if got := readTestFile(t, path); got != first {
			t.Errorf("second run changed the file:\n%s", got)
		}
	})

	t.Run("client mode copies content untouched", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "client")

		stdout, stderr, err := execute(t, testPage, site.args("rewrite", "-")...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != testPage {
			t.Errorf("content changed in client mode:\n%s", stdout)
		}
		if !strings.Contains(stderr, "client mode") {
			t.Errorf("expected a client mode warning, got:\n%s", stderr)
		}
	})

	t.Run("requires a target", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")

		_, _, err := execute(t, "", site.args("rewrite")...)
		if !errors.Is(err, config.ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("requires a site", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")

		_, _, err := execute(t, testPage, "--config", site.config, "--db-dir", site.dbDir, "rewrite", "-")
		if !errors.Is(err, config.ErrNoSite) {
			t.Errorf("expected ErrNoSite, got %v", err)
		}
	})

	t.Run("watch requires out", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")

		_, _, err := execute(t, "", site.args("rewrite", "--watch", t.TempDir())...)
		if !errors.Is(err, config.ErrWatchRequiresOutDir) {
			t.Errorf("expected ErrWatchRequiresOutDir, got %v", err)
		}
	})

	t.Run("operator icon directory", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")
		writeTestFile(t, site.config, "defaults:\n  iconSvgFile: brand\n")
		icons := t.TempDir()
		writeTestFile(t, filepath.Join(icons, "brand.svg"), `<svg viewBox="0 0 1 1"></svg>`)

		stdout, _, err := execute(t, testPage, site.args("--icon-dir", icons, "rewrite", "-")...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, `<svg class="selm-external-icon selm-external-icon-svg" viewBox="0 0 1 1"></svg>`) {
			t.Errorf("operator icon not used:\n%s", stdout)
		}

		_, _, err = execute(t, testPage, site.args("--icon-dir", filepath.Join(icons, "missing"), "rewrite", "-")...)
		if !errors.Is(err, config.ErrInvalidIconDir) {
			t.Errorf("expected ErrInvalidIconDir, got %v", err)
		}
	})

	t.Run("path scopes limit annotation", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")
		writeTestFile(t, site.config, "defaults:\n  addIcon: false\n  paths: [\"/blog/*\"]\n")
		src := t.TempDir()
		out := filepath.Join(t.TempDir(), "dist")
		writeTestFile(t, filepath.Join(src, "index.html"), testPage)
		writeTestFile(t, filepath.Join(src, "blog", "post.html"), testPage)

		if _, stderr, err := execute(t, "", site.args("rewrite", "--out", out, src)...); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if got := readTestFile(t, filepath.Join(out, "index.html")); got != testPage {
			t.Errorf("page outside the scopes changed:\n%s", got)
		}
		if got := readTestFile(t, filepath.Join(out, "blog", "post.html")); !strings.Contains(got, `class="selm-external-link"`) {
			t.Errorf("page inside the scopes not annotated:\n%s", got)
		}
	})

	t.Run("reports failed documents", func(t *testing.T) {
		t.Parallel()
		site := newTestSite(t, "server")
		dir := t.TempDir()
		good := filepath.Join(dir, "good.html")
		writeTestFile(t, good, testPage)
		missing := filepath.Join(dir, "gone.html")

		// Targets are checked before anything is written.
		_, _, err := execute(t, "", site.args("rewrite", "--out", t.TempDir(), good, missing)...)
		if err == nil {
			t.Error("expected an error for a missing target")
		}
	})
}

func TestWatchRoots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "page.html")
	writeTestFile(t, file, testPage)

	roots, err := watchRoots([]string{dir, file, pipeline.Stdin, "https://example.com/"})
	if err != nil {
		t.Fatalf("watchRoots() error = %v", err)
	}
	want := []watchRoot{{dir: dir}, {dir: dir, only: file}}
	if !slices.Equal(roots, want) {
		t.Errorf("watchRoots() = %+v, want %+v", roots, want)
	}
}

func TestChangedDocuments(t *testing.T) {
	t.Parallel()

	content := filepath.Join(string(filepath.Separator), "site", "content")
	other := filepath.Join(string(filepath.Separator), "site", "other")
	single := filepath.Join(other, "one.html")
	roots := []watchRoot{{dir: content}, {dir: other, only: single}}

	docs := changedDocuments(roots, []string{
		filepath.Join(content, "a", "b.md"),
		filepath.Join(other, "two.html"),
		single,
		filepath.Join(string(filepath.Separator), "elsewhere", "c.html"),
	})

	var got []string
	for _, d := range docs {
		got = append(got, d.Source+"@"+d.Root)
	}
	want := []string{
		filepath.Join(content, "a", "b.md") + "@" + content,
		single + "@" + other,
	}
	if !slices.Equal(got, want) {
		t.Errorf("changedDocuments() = %v, want %v", got, want)
	}
	if docs[0].Kind != pipeline.KindMarkdown {
		t.Errorf("Kind = %v, want markdown", docs[0].Kind)
	}
}

func TestRewriteWatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, "server")
	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "index.html"), testPage)
	out := filepath.Join(t.TempDir(), "dist")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := NewRootCmd()
	cmd.SetArgs(site.args("rewrite", "--out", out, "--watch", src))
	cmd.SetIn(strings.NewReader(""))
	var stderr strings.Builder
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&lockedWriter{w: &stderr, onWrite: func(s string) {
		if strings.Contains(s, "watching ") {
			cancel()
		}
	}})

	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readTestFile(t, filepath.Join(out, "index.html")); !strings.Contains(got, testAnnotated) {
		t.Errorf("initial rewrite missing:\n%s", got)
	}
}

// lockedWriter serializes writes from the command and its logger and calls
// onWrite with each chunk.
type lockedWriter struct {
	mu      sync.Mutex
	w       *strings.Builder
	onWrite func(string)
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.onWrite != nil {
		l.onWrite(string(p))
	}
	return l.w.Write(p)
}
