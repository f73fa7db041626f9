package rewriter

import (
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/linkmark/internal/model"
)

// attribute is one attribute of a raw start tag with its byte span.
type attribute struct {
	// name is the lowercased attribute name.
	name string
	// value is the entity-decoded value, empty for bare attributes.
	value string
	// start and end delimit the whole attribute (name, "=" and value) in the tag.
	start, end int
}

// anchorElement is one <a> element collected from the token stream.
type anchorElement struct {
	// startTag is the raw start tag.
	startTag string
	attrs    []attribute
	inner    strings.Builder
	// endTag is the raw end tag, empty when the anchor was never closed.
	endTag  string
	hasIcon bool
}

func (a *anchorElement) closed() bool {
	return a.endTag != ""
}

// original returns the element exactly as it appeared in the input.
func (a *anchorElement) original() string {
	return a.startTag + a.inner.String() + a.endTag
}

func (a *anchorElement) attr(name string) (attribute, bool) {
	i := slices.IndexFunc(a.attrs, func(at attribute) bool { return at.name == name })
	if i < 0 {
		return attribute{}, false
	}
	return a.attrs[i], true
}

// record extracts the AnchorRecord consumed by the classifier and annotator.
func (a *anchorElement) record() model.AnchorRecord {
	rec := model.AnchorRecord{HasIcon: a.hasIcon}
	if href, ok := a.attr("href"); ok {
		rec.Href = href.value
	}
	if rel, ok := a.attr("rel"); ok {
		rec.Rel = strings.Fields(rel.value)
	}
	if class, ok := a.attr("class"); ok {
		rec.Class = strings.Fields(class.value)
	}
	if target, ok := a.attr("target"); ok {
		rec.Target = target.value
		rec.HasTarget = true
	}
	return rec
}

// scan walks content and hands every <a href> element to visit, writing the
// returned text in its place. All other tokens are copied verbatim.
// When out is nil nothing is written, which is how Analyze uses it.
func scan(content string, out *strings.Builder, visit func(a *anchorElement) string) {
	write := func(s string) {
		if out != nil {
			out.WriteString(s)
		}
	}

	var open *anchorElement
	flush := func() {
		if open != nil {
			write(visit(open))
			open = nil
		}
	}

	// consumed is the length of content covered by complete tokens. A tag cut
	// off by the end of input never becomes a token and is copied from here.
	consumed := 0
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			flush()
			write(content[consumed:])
			return
		}
		// Raw must be copied before TagName and TagAttr, which lowercase the
		// underlying buffer in place.
		raw := string(z.Raw())
		consumed += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "a" {
				// "<a/>" opens an anchor like "<a>": the self-closing flag is
				// ignored on non-void elements.
				flush()
				attrs := parseAttributes(raw)
				if slices.ContainsFunc(attrs, func(at attribute) bool { return at.name == "href" }) {
					open = &anchorElement{startTag: raw, attrs: attrs}
					continue
				}
			} else if open != nil && hasAttr && !open.hasIcon {
				open.hasIcon = tokenHasClass(z, model.IconClass)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && open != nil {
				open.endTag = raw
				flush()
				continue
			}
		}

		if open != nil {
			open.inner.WriteString(raw)
		} else {
			write(raw)
		}
	}
}

// tokenHasClass reports whether the current tag token carries the class token.
func tokenHasClass(z *html.Tokenizer, token string) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "class" && slices.Contains(strings.Fields(string(val)), token) {
			return true
		}
		if !more {
			return false
		}
	}
}

// parseAttributes splits a raw start tag into attributes, recording the byte
// span of each one. It follows the tokenizer's rules for names and values.
func parseAttributes(tag string) []attribute {
	i := tagNameEnd(tag)
	var attrs []attribute
	for i < len(tag) {
		for i < len(tag) && (isSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			break
		}

		start := i
		i++
		for i < len(tag) && !isSpace(tag[i]) && tag[i] != '=' && tag[i] != '>' && tag[i] != '/' {
			i++
		}
		attr := attribute{name: strings.ToLower(tag[start:i]), start: start, end: i}

		j := i
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j < len(tag) && tag[j] == '=' {
			j++
			for j < len(tag) && isSpace(tag[j]) {
				j++
			}
			var value string
			if j < len(tag) && (tag[j] == '"' || tag[j] == '\'') {
				quote := tag[j]
				j++
				vs := j
				for j < len(tag) && tag[j] != quote {
					j++
				}
				value = tag[vs:j]
				if j < len(tag) {
					j++
				}
			} else {
				vs := j
				for j < len(tag) && !isSpace(tag[j]) && tag[j] != '>' {
					j++
				}
				value = tag[vs:j]
			}
			attr.value = html.UnescapeString(value)
			attr.end = j
			i = j
		}
		attrs = append(attrs, attr)
	}
	return attrs
}

// tagNameEnd returns the offset just past the tag name ("<a" -> 2).
func tagNameEnd(tag string) int {
	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
