package pipeline

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/model"
)

// Stdin is the source name that reads content from standard input.
const Stdin = "-"

// Kind is the content format of a document.
type Kind int

const (
	// KindHTML is rewritten with the static rewriter.
	KindHTML Kind = iota
	// KindMarkdown is rendered to HTML with the external links extension.
	KindMarkdown
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindMarkdown {
		return "markdown"
	}
	return "html"
}

// Document is one input moving through a pipeline.
type Document struct {
	// Source is a file path, an http(s) URL or Stdin.
	Source string

	// Root is the directory Source was found under. Output paths keep the
	// layout relative to Root.
	Root string

	Kind Kind

	// Content is the loaded input.
	Content string

	// Loaded is set once Content holds the input. The load step skips
	// documents that were loaded beforehand, such as crawled pages.
	Loaded bool

	// Output is the rewritten content, empty until a rewrite step ran.
	Output string

	// OutputPath is where Output was written, empty for stdout.
	OutputPath string

	// Stats is filled by the analyze step.
	Stats model.LinkStats

	// Steps lists the steps that completed.
	Steps []string

	// Err is the first error that stopped the pipeline.
	Err error
}

// NewDocument creates a document for source and detects its kind from the
// extension.
func NewDocument(source, root string) *Document {
	return &Document{Source: source, Root: root, Kind: KindOf(source)}
}

// IsURL reports whether the document is fetched over HTTP.
func (d *Document) IsURL() bool {
	return fetcher.IsURL(d.Source)
}

// ScopePath returns the slash separated path matched against path scopes:
// the URL path for URLs and the path below Root for files. ok is false for
// standard input, which has no path.
func (d *Document) ScopePath() (string, bool) {
	switch {
	case d.Source == Stdin:
		return "", false
	case d.IsURL():
		u, err := url.Parse(d.Source)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}

	p := d.Source
	if d.Root != "" {
		if rel, err := filepath.Rel(d.Root, d.Source); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			p = rel
		}
	}
	return "/" + strings.TrimPrefix(filepath.ToSlash(p), "/"), true
}

// KindOf returns the kind for a path by extension.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return KindMarkdown
	default:
		return KindHTML
	}
}

// IsContentFile reports whether path has an extension the pipeline handles.
func IsContentFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".md", ".markdown":
		return true
	default:
		return false
	}
}

// Collect expands targets into documents. Directories are walked
// recursively for content files, skipping hidden directories. URLs and
// Stdin are passed through. The result keeps target order and lists
// each file once.
func Collect(targets []string) ([]*Document, error) {
	var docs []*Document
	seen := map[string]bool{}
	add := func(source, root string) {
		if seen[source] {
			return
		}
		seen[source] = true
		docs = append(docs, NewDocument(source, root))
	}

	for _, target := range targets {
		if target == Stdin || fetcher.IsURL(target) {
			add(target, "")
			continue
		}

		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", target, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(target), filepath.Dir(target))
			continue
		}

		var files []string
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != target && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsContentFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", target, err)
		}
		slices.Sort(files)
		for _, f := range files {
			add(f, target)
		}
	}
	return docs, nil
}
