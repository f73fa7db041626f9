// Package mdext provides goldmark extensions that annotate external links
// while Markdown is rendered to HTML.
package mdext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/nao1215/linkmark/internal/annotator"
	"github.com/nao1215/linkmark/internal/classifier"
	"github.com/nao1215/linkmark/internal/model"
)

// ExternalLinks is an AST transformer that classifies every link and
// autolink and writes target, rel and class attributes on external ones.
// Icons are added as raw inline nodes inside regular links; autolinks render
// their own label and never get an icon.
type ExternalLinks struct {
	classifier *classifier.Classifier
	annotator  *annotator.Annotator
}

// NewExternalLinks creates the extension. renderer may be nil to disable icons.
func NewExternalLinks(site model.SiteIdentity, cfg model.LinkConfiguration, renderer annotator.IconRenderer) *ExternalLinks {
	return &ExternalLinks{
		classifier: classifier.New(site, cfg),
		annotator:  annotator.New(cfg, renderer),
	}
}

// New returns a GitHub flavored Markdown converter with the extension
// installed. Raw HTML in the source is passed through.
func New(site model.SiteIdentity, cfg model.LinkConfiguration, renderer annotator.IconRenderer) goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, NewExternalLinks(site, cfg, renderer)),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

// Extend implements goldmark.Extender.
func (e *ExternalLinks) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(e, 200),
	))
}

// Transform implements parser.ASTTransformer.
func (e *ExternalLinks) Transform(node *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()

	var links []ast.Node
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && (n.Kind() == ast.KindLink || n.Kind() == ast.KindAutoLink) {
			links = append(links, n)
		}
		return ast.WalkContinue, nil
	})

	for _, n := range links {
		switch link := n.(type) {
		case *ast.Link:
			e.annotate(link, string(link.Destination), true)
		case *ast.AutoLink:
			if link.AutoLinkType == ast.AutoLinkURL {
				e.annotate(link, string(link.URL(source)), false)
			}
		}
	}
}

func (e *ExternalLinks) annotate(n ast.Node, href string, allowIcon bool) {
	rec := model.AnchorRecord{
		Href:  href,
		Rel:   strings.Fields(attributeString(n, "rel")),
		Class: strings.Fields(attributeString(n, "class")),
	}
	if target, ok := n.AttributeString("target"); ok {
		rec.Target = toString(target)
		rec.HasTarget = true
	}

	if e.classifier.Classify(rec.Href, rec.Class) != model.External {
		return
	}

	delta := e.annotator.Annotate(rec)
	if delta.SetTarget {
		n.SetAttributeString("target", []byte(delta.Target))
	}
	if delta.RelChanged {
		n.SetAttributeString("rel", []byte(strings.Join(delta.Rel, " ")))
	}
	if delta.ClassChanged {
		n.SetAttributeString("class", []byte(strings.Join(delta.Class, " ")))
	}

	if delta.Icon == nil || !allowIcon {
		return
	}
	if delta.Icon.Position == model.IconBefore {
		n.InsertBefore(n, n.FirstChild(), rawInline(delta.Icon.Markup+" "))
	} else {
		n.AppendChild(n, rawInline(" "+delta.Icon.Markup))
	}
}

// rawInline returns an inline node whose value is written without escaping.
func rawInline(markup string) *ast.String {
	s := ast.NewString([]byte(markup))
	s.SetCode(true)
	return s
}

func attributeString(n ast.Node, name string) string {
	v, ok := n.AttributeString(name)
	if !ok {
		return ""
	}
	return toString(v)
}

func toString(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return ""
	}
}
