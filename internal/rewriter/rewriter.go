package rewriter

import (
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/linkmark/internal/annotator"
	"github.com/nao1215/linkmark/internal/classifier"
	"github.com/nao1215/linkmark/internal/icon"
	"github.com/nao1215/linkmark/internal/model"
)

// Rewriter annotates external anchors in HTML payloads for one site and one
// configuration snapshot. It holds no per-payload state and is safe for
// concurrent use.
//
// Design decision: the payload is tokenized, never parsed into a tree and
// rendered back. Bytes outside the changed attributes of an external anchor
// are copied from the input, so quoting, entity encoding, whitespace and
// malformed markup come out exactly as they went in.
type Rewriter struct {
	classifier *classifier.Classifier
	annotator  *annotator.Annotator
	logger     *slog.Logger
}

// Option configures a Rewriter.
type Option func(*options)

type options struct {
	renderer annotator.IconRenderer
	logger   *slog.Logger
}

// WithIconRenderer overrides the icon renderer. Passing nil disables icons.
func WithIconRenderer(r annotator.IconRenderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Rewriter. Icons are rendered with icon.New() unless
// WithIconRenderer is given.
func New(site model.SiteIdentity, cfg model.LinkConfiguration, opts ...Option) *Rewriter {
	o := options{renderer: icon.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Rewriter{
		classifier: classifier.New(site, cfg),
		annotator:  annotator.New(cfg, o.renderer),
		logger:     o.logger,
	}
}

// Rewrite annotates content with the default icon renderer.
func Rewrite(content string, site model.SiteIdentity, cfg model.LinkConfiguration) string {
	return New(site, cfg).Rewrite(content)
}

// Rewrite returns content with every external anchor annotated.
func (r *Rewriter) Rewrite(content string) string {
	var out strings.Builder
	out.Grow(len(content) + len(content)/8)

	annotated := 0
	scan(content, &out, func(a *anchorElement) string {
		rewritten, ok := r.rewriteAnchor(a)
		if ok {
			annotated++
			return rewritten
		}
		return a.original()
	})

	if annotated > 0 {
		r.logger.Debug("annotated external links", "count", annotated)
	}
	return out.String()
}

// rewriteAnchor returns the annotated element and true, or false when the
// anchor must be left as is.
func (r *Rewriter) rewriteAnchor(a *anchorElement) (string, bool) {
	if !a.closed() {
		return "", false
	}

	rec := a.record()
	if c := r.classifier.Classify(rec.Href, rec.Class); c != model.External {
		return "", false
	}

	delta := r.annotator.Annotate(rec)
	if delta.Empty() {
		return "", false
	}

	inner := a.inner.String()
	if delta.Icon != nil {
		if delta.Icon.Position == model.IconBefore {
			inner = delta.Icon.Markup + " " + inner
		} else {
			inner = inner + " " + delta.Icon.Markup
		}
	}

	return spliceStartTag(a.startTag, a.attrs, delta) + inner + a.endTag, true
}

// spliceStartTag writes the changed attributes into the raw start tag.
// Existing attributes are replaced in place; new ones are inserted right after
// the tag name in target, rel, class order. All other bytes are kept.
func spliceStartTag(tag string, attrs []attribute, delta model.AttributeDelta) string {
	type edit struct {
		start, end int
		text       string
	}
	var (
		edits    []edit
		inserted strings.Builder
	)

	set := func(name, value string) {
		text := name + `="` + html.EscapeString(value) + `"`
		i := slices.IndexFunc(attrs, func(at attribute) bool { return at.name == name })
		if i < 0 {
			inserted.WriteString(" " + text)
			return
		}
		edits = append(edits, edit{start: attrs[i].start, end: attrs[i].end, text: text})
	}

	if delta.SetTarget {
		set("target", delta.Target)
	}
	if delta.RelChanged {
		set("rel", strings.Join(delta.Rel, " "))
	}
	if delta.ClassChanged {
		set("class", strings.Join(delta.Class, " "))
	}
	slices.SortFunc(edits, func(a, b edit) int { return a.start - b.start })

	nameEnd := tagNameEnd(tag)
	var b strings.Builder
	b.Grow(len(tag) + inserted.Len() + 32)
	b.WriteString(tag[:nameEnd])
	b.WriteString(inserted.String())

	pos := nameEnd
	for _, e := range edits {
		b.WriteString(tag[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(tag[pos:])
	return b.String()
}
