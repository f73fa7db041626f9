package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/rewriter"
)

var site = model.NewSiteIdentity("mysite.com", "https")

func noIconOptions() model.Options {
	opts := model.DefaultOptions()
	opts.Link.AddIcon = false
	return opts
}

func scopedOptions() model.Options {
	opts := noIconOptions()
	opts.Paths = []string{"/blog/*"}
	return opts
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "")
	writeFile(t, filepath.Join(dir, "blog", "post.md"), "")
	writeFile(t, filepath.Join(dir, "blog", "image.png"), "")
	writeFile(t, filepath.Join(dir, ".git", "HEAD.html"), "")

	got, err := Collect([]string{dir, filepath.Join(dir, "index.html"), "https://example.com/", Stdin})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var sources []string
	for _, d := range got {
		sources = append(sources, d.Source)
	}
	want := []string{
		filepath.Join(dir, "blog", "post.md"),
		filepath.Join(dir, "index.html"),
		"https://example.com/",
		Stdin,
	}
	if !slices.Equal(sources, want) {
		t.Errorf("sources = %v, want %v", sources, want)
	}
	if got[0].Kind != KindMarkdown || got[0].Root != dir {
		t.Errorf("markdown document = %+v", got[0])
	}

	if _, err := Collect([]string{filepath.Join(dir, "missing.html")}); err == nil {
		t.Error("Collect() accepted a missing file")
	}
}

func TestLoadStep(t *testing.T) {
	t.Parallel()

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.html")
		writeFile(t, path, "<p>hi</p>")

		doc := NewDocument(path, filepath.Dir(path))
		if err := NewLoadStep(nil, nil).Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if doc.Content != "<p>hi</p>" {
			t.Errorf("Content = %q", doc.Content)
		}
	})

	t.Run("stdin", func(t *testing.T) {
		t.Parallel()

		doc := NewDocument(Stdin, "")
		if err := NewLoadStep(nil, strings.NewReader("x")).Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if doc.Content != "x" || !doc.Loaded {
			t.Errorf("doc = %+v", doc)
		}
	})

	t.Run("preloaded", func(t *testing.T) {
		t.Parallel()

		doc := NewDocument("https://example.com/", "")
		doc.Content, doc.Loaded = "<p>crawled</p>", true
		if err := NewLoadStep(nil, nil).Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if doc.Content != "<p>crawled</p>" {
			t.Errorf("Content = %q", doc.Content)
		}
	})

	t.Run("url", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/data.json" {
				w.Header().Set("Content-Type", "application/json")
			}
			_, _ = io.WriteString(w, "<a href=/x>x</a>")
		}))
		t.Cleanup(srv.Close)

		f, err := fetcher.New(fetcher.WithLogger(discard))
		if err != nil {
			t.Fatal(err)
		}
		step := NewLoadStep(f, nil)

		doc := NewDocument(srv.URL+"/page.md", "")
		if err := step.Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if doc.Kind != KindHTML || doc.Content != "<a href=/x>x</a>" {
			t.Errorf("doc = %+v", doc)
		}

		doc = NewDocument(srv.URL+"/data.json", "")
		if err := step.Do(context.Background(), doc); !errors.Is(err, ErrNotHTML) {
			t.Errorf("Do() error = %v, want ErrNotHTML", err)
		}
	})
}

func TestRewriteStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    func() model.Options
		source  string
		kind    Kind
		content string
		want    string
	}{
		{
			name:    "html external",
			opts:    noIconOptions,
			kind:    KindHTML,
			content: `<a href="https://other.org/page">Link</a>`,
			want:    `<a target="_blank" rel="nofollow noopener" class="selm-external-link" href="https://other.org/page">Link</a>`,
		},
		{
			name:    "html internal",
			opts:    noIconOptions,
			kind:    KindHTML,
			content: `<a href="/about">About</a>`,
			want:    `<a href="/about">About</a>`,
		},
		{
			name: "disabled",
			opts: func() model.Options {
				o := noIconOptions()
				o.Enabled = false
				return o
			},
			kind:    KindHTML,
			content: `<a href="https://other.org/page">Link</a>`,
			want:    `<a href="https://other.org/page">Link</a>`,
		},
		{
			name:    "markdown with raw html anchor",
			opts:    noIconOptions,
			kind:    KindMarkdown,
			content: "[md](https://other.org)\n\n<a href=\"https://raw.org\">raw</a>\n",
			want: "<p><a href=\"https://other.org\" target=\"_blank\" rel=\"nofollow noopener\" class=\"selm-external-link\">md</a></p>\n" +
				"<p><a target=\"_blank\" rel=\"nofollow noopener\" class=\"selm-external-link\" href=\"https://raw.org\">raw</a></p>\n",
		},
		{
			name: "markdown disabled",
			opts: func() model.Options {
				o := noIconOptions()
				o.Enabled = false
				return o
			},
			kind:    KindMarkdown,
			content: "[md](https://other.org)\n",
			want:    "<p><a href=\"https://other.org\">md</a></p>\n",
		},
		{
			name:    "inside path scope",
			opts:    scopedOptions,
			source:  filepath.Join("public", "blog", "post.html"),
			kind:    KindHTML,
			content: `<a href="https://other.org/page">Link</a>`,
			want:    `<a target="_blank" rel="nofollow noopener" class="selm-external-link" href="https://other.org/page">Link</a>`,
		},
		{
			name:    "outside path scope",
			opts:    scopedOptions,
			source:  filepath.Join("public", "index.html"),
			kind:    KindHTML,
			content: `<a href="https://other.org/page">Link</a>`,
			want:    `<a href="https://other.org/page">Link</a>`,
		},
		{
			name:    "markdown outside path scope",
			opts:    scopedOptions,
			source:  filepath.Join("public", "about.md"),
			kind:    KindMarkdown,
			content: "[md](https://other.org)\n",
			want:    "<p><a href=\"https://other.org\">md</a></p>\n",
		},
		{
			name:    "stdin ignores path scope",
			opts:    scopedOptions,
			source:  Stdin,
			kind:    KindHTML,
			content: `<a href="https://other.org/page">Link</a>`,
			want:    `<a target="_blank" rel="nofollow noopener" class="selm-external-link" href="https://other.org/page">Link</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			step := NewRewriteStep(site, tt.opts(), nil, rewriter.WithLogger(discard))
			source := tt.source
			if source == "" {
				source = "x"
			}
			doc := &Document{Source: source, Root: "public", Kind: tt.kind, Content: tt.content}
			if err := step.Do(context.Background(), doc); err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if doc.Output != tt.want {
				t.Errorf("\n got: %q\nwant: %q", doc.Output, tt.want)
			}
		})
	}
}

func TestDocumentScopePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		root   string
		want   string
		wantOK bool
	}{
		{name: "file below root", source: filepath.Join("public", "blog", "a.html"), root: "public", want: "/blog/a.html", wantOK: true},
		{name: "file without root", source: "a.html", want: "/a.html", wantOK: true},
		{name: "url", source: "https://example.com/blog/a.html?x=1", want: "/blog/a.html", wantOK: true},
		{name: "stdin", source: Stdin, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := NewDocument(tt.source, tt.root).ScopePath()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ScopePath() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAnalyzeStep(t *testing.T) {
	t.Parallel()

	cfg := model.DefaultLinkConfiguration()
	cfg.ExcludeDomains = []string{"partner.com"}
	step := NewAnalyzeStep(site, cfg, rewriter.WithLogger(discard))

	doc := &Document{
		Source:  "post.md",
		Kind:    KindMarkdown,
		Content: "[a](https://www.other.org) [b](https://partner.com) [c](/about) [d](mailto:x@y.z)\n",
	}
	if err := step.Do(context.Background(), doc); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	s := doc.Stats
	if s.Total != 4 || s.External != 1 || s.ExcludedByDomain != 1 || s.Internal != 1 || s.Special != 1 {
		t.Errorf("stats = %+v", s)
	}
	if !slices.Equal(s.Domains, []string{"other.org", "partner.com"}) {
		t.Errorf("Domains = %v", s.Domains)
	}
	if doc.Output != "" {
		t.Error("analyze step produced output")
	}
}

func TestWriteStep(t *testing.T) {
	t.Parallel()

	t.Run("writes below out dir", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		out := t.TempDir()
		doc := &Document{
			Source: filepath.Join(root, "blog", "post.md"),
			Root:   root,
			Kind:   KindMarkdown,
			Output: "<p>x</p>",
		}
		if err := NewWriteStep(out, io.Discard).Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		want := filepath.Join(out, "blog", "post.html")
		if doc.OutputPath != want {
			t.Errorf("OutputPath = %q, want %q", doc.OutputPath, want)
		}
		data, err := os.ReadFile(want)
		if err != nil || string(data) != "<p>x</p>" {
			t.Errorf("file = %q, %v", data, err)
		}
	})

	t.Run("stdin goes to stdout", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		doc := &Document{Source: Stdin, Output: "out"}
		if err := NewWriteStep("", &buf).Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if buf.String() != "out" || doc.OutputPath != "" {
			t.Errorf("stdout = %q, OutputPath = %q", buf.String(), doc.OutputPath)
		}
	})

	t.Run("unchanged file is not rewritten", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.html")
		writeFile(t, path, "same")
		if err := os.Chmod(path, 0o400); err != nil {
			t.Fatal(err)
		}

		doc := &Document{Source: path, Root: filepath.Dir(path), Content: "same", Output: "same"}
		if err := NewWriteStep("", io.Discard).Do(context.Background(), doc); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	})
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    *Document
		outDir string
		want   string
	}{
		{name: "stdin", doc: &Document{Source: Stdin}, outDir: "out", want: ""},
		{name: "url to stdout", doc: &Document{Source: "https://example.com/a"}, want: ""},
		{name: "url root", doc: &Document{Source: "https://example.com"}, outDir: "out", want: filepath.Join("out", "example.com", "index.html")},
		{name: "url dir", doc: &Document{Source: "https://example.com/blog/"}, outDir: "out", want: filepath.Join("out", "example.com", "blog", "index.html")},
		{name: "url file", doc: &Document{Source: "https://example.com/a/b.html"}, outDir: "out", want: filepath.Join("out", "example.com", "a", "b.html")},
		{name: "html in place", doc: &Document{Source: filepath.Join("site", "a.html"), Root: "site"}, want: filepath.Join("site", "a.html")},
		{name: "markdown in place", doc: &Document{Source: filepath.Join("site", "a.md"), Root: "site", Kind: KindMarkdown}, want: filepath.Join("site", "a.html")},
		{name: "nested out", doc: &Document{Source: filepath.Join("site", "x", "a.htm"), Root: "site"}, outDir: "out", want: filepath.Join("out", "x", "a.htm")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := OutputPath(tt.doc, tt.outDir)
			if err != nil {
				t.Fatalf("OutputPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	if KindOf("a.MD") != KindMarkdown || KindOf("a.markdown") != KindMarkdown {
		t.Error("markdown extensions not detected")
	}
	if KindOf("a.html") != KindHTML || KindOf("https://x.org/") != KindHTML {
		t.Error("html expected")
	}
	if KindMarkdown.String() != "markdown" || KindHTML.String() != "html" {
		t.Error("unexpected kind names")
	}
}
