package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/nao1215/linkmark/internal/annotator"
	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/mdext"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/rewriter"
)

// ErrNotHTML is returned when a fetched URL does not serve HTML.
var ErrNotHTML = errors.New("response is not HTML")

// plainMarkdown renders Markdown without touching links.
func plainMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldhtml.WithUnsafe()),
	)
}

// LoadStep reads a document from disk, standard input or the network.
type LoadStep struct {
	fetcher *fetcher.Fetcher
	stdin   io.Reader
}

// NewLoadStep creates a LoadStep. f may be nil when no URL targets exist.
func NewLoadStep(f *fetcher.Fetcher, stdin io.Reader) *LoadStep {
	return &LoadStep{fetcher: f, stdin: stdin}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do loads doc.Content.
func (s *LoadStep) Do(ctx context.Context, doc *Document) error {
	if doc.Loaded {
		return nil
	}
	switch {
	case doc.Source == Stdin:
		if s.stdin == nil {
			return errors.New("standard input is not available")
		}
		data, err := io.ReadAll(s.stdin)
		if err != nil {
			return fmt.Errorf("failed to read standard input: %w", err)
		}
		doc.Content = string(data)

	case doc.IsURL():
		if s.fetcher == nil {
			return errors.New("fetching URLs is not configured")
		}
		page, err := s.fetcher.Fetch(ctx, doc.Source)
		if err != nil {
			return err
		}
		if !page.IsHTML() {
			return fmt.Errorf("%w: %s (%s)", ErrNotHTML, doc.Source, page.ContentType)
		}
		doc.Kind = KindHTML
		doc.Content = page.Body

	default:
		data, err := os.ReadFile(doc.Source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", doc.Source, err)
		}
		doc.Content = string(data)
	}
	doc.Loaded = true
	return nil
}

// RewriteStep annotates external links. HTML goes through the static
// rewriter. Markdown is rendered with the external links extension and
// the result is passed through the rewriter as well, which annotates raw
// HTML anchors and leaves already annotated ones unchanged.
type RewriteStep struct {
	rewriter *rewriter.Rewriter
	markdown goldmark.Markdown
	plain    goldmark.Markdown
	opts     model.Options
}

// NewRewriteStep creates a RewriteStep for opts. When opts are disabled,
// or a document lies outside opts.Paths, HTML passes through unchanged and
// Markdown is rendered plainly. Standard input is always in scope.
func NewRewriteStep(site model.SiteIdentity, opts model.Options, renderer annotator.IconRenderer, ropts ...rewriter.Option) *RewriteStep {
	s := &RewriteStep{plain: plainMarkdown(), opts: opts}
	if !opts.Enabled {
		return s
	}
	ropts = append([]rewriter.Option{rewriter.WithIconRenderer(renderer)}, ropts...)
	s.rewriter = rewriter.New(site, opts.Link, ropts...)
	s.markdown = mdext.New(site, opts.Link, renderer)
	return s
}

// active reports whether doc is annotated.
func (s *RewriteStep) active(doc *Document) bool {
	if s.rewriter == nil {
		return false
	}
	p, ok := doc.ScopePath()
	return !ok || s.opts.InScope(p)
}

// Name returns the step name.
func (s *RewriteStep) Name() string {
	return "rewrite"
}

// Do sets doc.Output.
func (s *RewriteStep) Do(_ context.Context, doc *Document) error {
	active := s.active(doc)
	content := doc.Content
	if doc.Kind == KindMarkdown {
		md := s.plain
		if active {
			md = s.markdown
		}
		var buf bytes.Buffer
		if err := md.Convert([]byte(content), &buf); err != nil {
			return fmt.Errorf("failed to render %s: %w", doc.Source, err)
		}
		content = buf.String()
	}

	if active {
		content = s.rewriter.Rewrite(content)
	}
	doc.Output = content
	return nil
}

// AnalyzeStep computes link statistics without modifying the document.
type AnalyzeStep struct {
	rewriter *rewriter.Rewriter
	markdown goldmark.Markdown
}

// NewAnalyzeStep creates an AnalyzeStep classifying links for site and cfg.
func NewAnalyzeStep(site model.SiteIdentity, cfg model.LinkConfiguration, ropts ...rewriter.Option) *AnalyzeStep {
	ropts = append([]rewriter.Option{rewriter.WithIconRenderer(nil)}, ropts...)
	return &AnalyzeStep{
		rewriter: rewriter.New(site, cfg, ropts...),
		markdown: plainMarkdown(),
	}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do sets doc.Stats.
func (s *AnalyzeStep) Do(_ context.Context, doc *Document) error {
	content := doc.Content
	if doc.Kind == KindMarkdown {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(content), &buf); err != nil {
			return fmt.Errorf("failed to render %s: %w", doc.Source, err)
		}
		content = buf.String()
	}
	doc.Stats = s.rewriter.Analyze(doc.Source, content)
	return nil
}

// WriteStep stores doc.Output. Files are written under outDir keeping
// their layout relative to the document root, or next to the source when
// outDir is empty. Standard input and URLs without outDir go to stdout.
type WriteStep struct {
	outDir string
	stdout io.Writer
	mu     *sync.Mutex
}

// NewWriteStep creates a WriteStep.
func NewWriteStep(outDir string, stdout io.Writer) *WriteStep {
	return &WriteStep{outDir: outDir, stdout: stdout, mu: &sync.Mutex{}}
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do writes doc.Output and sets doc.OutputPath.
func (s *WriteStep) Do(_ context.Context, doc *Document) error {
	target, err := OutputPath(doc, s.outDir)
	if err != nil {
		return err
	}

	if target == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, err := io.WriteString(s.stdout, doc.Output); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	// Leave unchanged files alone so their modification time is kept.
	if target == doc.Source && doc.Output == doc.Content {
		doc.OutputPath = target
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(doc.Output), 0o644); err != nil { //nolint:gosec // pages are served publicly
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	doc.OutputPath = target
	return nil
}

// OutputPath returns where the rewritten doc goes, or "" for stdout.
// Markdown sources are written with an .html extension.
func OutputPath(doc *Document, outDir string) (string, error) {
	if doc.Source == Stdin {
		return "", nil
	}

	if doc.IsURL() {
		if outDir == "" {
			return "", nil
		}
		u, err := url.Parse(doc.Source)
		if err != nil {
			return "", fmt.Errorf("invalid URL %s: %w", doc.Source, err)
		}
		p := path.Clean("/" + u.Path)
		if strings.HasSuffix(u.Path, "/") || p == "/" {
			p = path.Join(p, "index.html")
		}
		return filepath.Join(outDir, u.Hostname(), filepath.FromSlash(p)), nil
	}

	target := doc.Source
	if doc.Kind == KindMarkdown {
		target = strings.TrimSuffix(target, filepath.Ext(target)) + ".html"
	}
	if outDir == "" {
		return target, nil
	}

	rel, err := filepath.Rel(doc.Root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(target)
	}
	return filepath.Join(outDir, rel), nil
}
