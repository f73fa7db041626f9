// Package annotator computes the attribute and icon changes applied to an
// external anchor.
package annotator

import (
	"strings"

	"github.com/nao1215/linkmark/internal/model"
)

// Rel tokens added to external anchors.
const (
	RelNofollow = "nofollow"
	RelNoopener = "noopener"
)

// TargetBlank is the target written when OpenNewTab is enabled.
const TargetBlank = "_blank"

// IconRenderer produces icon markup. An empty result means no icon.
type IconRenderer interface {
	Render(iconType model.IconType, name, class, custom string) string
}

// Annotator applies one LinkConfiguration. The icon markup is rendered once
// at construction because the configuration is immutable for a pass.
type Annotator struct {
	cfg  model.LinkConfiguration
	icon string
}

// New creates an Annotator. renderer may be nil, which disables icons.
func New(cfg model.LinkConfiguration, renderer IconRenderer) *Annotator {
	a := &Annotator{cfg: cfg.Clone()}
	if cfg.AddIcon && renderer != nil {
		a.icon = renderer.Render(cfg.IconType, cfg.IconSVGFile, cfg.IconClass, cfg.CustomIcon)
	}
	return a
}

// Annotate computes the delta for an anchor using a fresh Annotator.
func Annotate(rec model.AnchorRecord, cfg model.LinkConfiguration, renderer IconRenderer) model.AttributeDelta {
	return New(cfg, renderer).Annotate(rec)
}

// IconMarkup returns the pre-rendered icon, empty when icons are disabled.
func (a *Annotator) IconMarkup() string {
	return a.icon
}

// Annotate returns the changes needed to turn rec into an annotated anchor.
// Applying the result and annotating again yields an empty delta.
func (a *Annotator) Annotate(rec model.AnchorRecord) model.AttributeDelta {
	var delta model.AttributeDelta

	if a.cfg.OpenNewTab && !rec.HasTarget {
		delta.Target = TargetBlank
		delta.SetTarget = true
	}

	var relAdd []string
	if a.cfg.AddNofollow {
		relAdd = append(relAdd, RelNofollow)
	}
	if a.cfg.AddNoopener {
		relAdd = append(relAdd, RelNoopener)
	}
	if len(relAdd) > 0 {
		delta.Rel, delta.RelChanged = MergeTokens(rec.Rel, strings.EqualFold, relAdd...)
	}

	delta.Class, delta.ClassChanged = MergeTokens(rec.Class, stringsEqual, model.ExternalLinkClass)

	if a.icon != "" && !rec.HasIcon {
		position := a.cfg.IconPosition
		if position != model.IconBefore {
			position = model.IconAfter
		}
		delta.Icon = &model.IconInsertion{Markup: a.icon, Position: position}
	}

	return delta
}

// MergeTokens returns the ordered union of existing and add: existing tokens
// first (duplicates dropped), then missing tokens from add in order. changed
// reports whether the result differs from existing.
func MergeTokens(existing []string, equal func(a, b string) bool, add ...string) (merged []string, changed bool) {
	merged = make([]string, 0, len(existing)+len(add))
	appendUnique := func(token string) {
		if token == "" {
			return
		}
		for _, m := range merged {
			if equal(m, token) {
				return
			}
		}
		merged = append(merged, token)
	}

	for _, t := range existing {
		appendUnique(t)
	}
	for _, t := range add {
		appendUnique(t)
	}

	if len(merged) != len(existing) {
		return merged, true
	}
	for i := range merged {
		if merged[i] != existing[i] {
			return merged, true
		}
	}
	return merged, false
}

func stringsEqual(a, b string) bool { return a == b }
