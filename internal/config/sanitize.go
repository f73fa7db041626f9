package config

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/linkmark/internal/icon"
	"github.com/nao1215/linkmark/internal/model"
)

// customIconPolicy cleans custom icon markup coming from untrusted sources.
var customIconPolicy = bluemonday.UGCPolicy()

// Sanitize normalizes settings before they are stored or used:
//   - unknown modes, icon types and positions fall back to their defaults
//   - text fields lose markup and redundant whitespace
//   - the SVG name is reduced to a safe file name
//   - list entries (excluded classes and domains, path scopes) are trimmed,
//     split on newlines, and empty ones dropped
//   - custom CSS loses markup
//
// Custom icon markup is kept verbatim unless untrusted is set, in which case
// it is passed through a user generated content policy.
func Sanitize(opts model.Options, untrusted bool) model.Options {
	defaults := model.DefaultLinkConfiguration()
	opts.Link = opts.Link.Clone()
	link := &opts.Link

	if !opts.Mode.Valid() {
		opts.Mode = model.ModeServer
	}

	switch link.IconType {
	case model.IconSVG, model.IconFontAwesome, model.IconCustom, model.IconDashicon:
	default:
		link.IconType = defaults.IconType
	}
	if link.IconPosition != model.IconBefore && link.IconPosition != model.IconAfter {
		link.IconPosition = defaults.IconPosition
	}

	link.IconClass = sanitizeText(link.IconClass)
	if link.IconSVGFile = icon.SanitizeFileName(link.IconSVGFile); link.IconSVGFile == "" {
		link.IconSVGFile = defaults.IconSVGFile
	}
	if untrusted {
		link.CustomIcon = customIconPolicy.Sanitize(link.CustomIcon)
	}
	link.CustomIcon = strings.TrimSpace(link.CustomIcon)

	link.ExcludeClasses = sanitizeList(link.ExcludeClasses, false)
	link.ExcludeDomains = sanitizeList(link.ExcludeDomains, true)

	opts.CustomCSS = strings.TrimSpace(stripTags(opts.CustomCSS))
	if opts.Paths != nil {
		opts.Paths = sanitizeList(opts.Paths, false)
	}
	return opts
}

// sanitizeList flattens newline separated entries and drops empty ones.
func sanitizeList(items []string, lower bool) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, line := range strings.Split(item, "\n") {
			line = sanitizeText(line)
			if lower {
				line = strings.ToLower(line)
			}
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// sanitizeText strips markup and collapses whitespace.
func sanitizeText(s string) string {
	return strings.Join(strings.Fields(stripTags(s)), " ")
}

// stripTags removes every tag and the contents of script and style
// elements. Text is kept byte for byte, entities are not decoded.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := atom.Atom(0)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip = a
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == skip {
				skip = 0
			}
		}
	}
}
