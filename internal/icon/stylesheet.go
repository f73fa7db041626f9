package icon

import (
	"strings"

	"github.com/nao1215/linkmark/internal/model"
)

const baseCSS = `.selm-external-link {
	position: relative;
}

.selm-external-icon {
	display: inline-block;
	vertical-align: middle;
	margin: 0 2px;
	font-size: 0.9em;
	line-height: 1;
}

.selm-external-icon.dashicons {
	width: 1em;
	height: 1em;
	font-size: 1em;
}

.selm-custom-icon {
	display: inline-block;
	vertical-align: middle;
}
`

const fontAwesomeCSS = `
.selm-external-icon.fa,
.selm-external-icon.fas,
.selm-external-icon.far,
.selm-external-icon.fab {
	font-size: 0.9em;
}
`

// Stylesheet returns the CSS served alongside annotated content: the base
// rules, icon-type specific rules and the operator's custom CSS, in that order.
func Stylesheet(opts model.Options) string {
	var b strings.Builder
	b.WriteString(baseCSS)
	if opts.Link.IconType == model.IconFontAwesome {
		b.WriteString(fontAwesomeCSS)
	}
	if custom := strings.TrimSpace(opts.CustomCSS); custom != "" {
		b.WriteString("\n")
		b.WriteString(custom)
		b.WriteString("\n")
	}
	return b.String()
}
