package model

import "slices"

// IconType selects how the external link icon is rendered.
type IconType string

const (
	// IconSVG renders one of the bundled SVG files.
	IconSVG IconType = "svg"
	// IconFontAwesome renders an <i> element carrying Font Awesome classes.
	IconFontAwesome IconType = "fontawesome"
	// IconCustom wraps operator supplied markup.
	IconCustom IconType = "custom"
	// IconDashicon renders a WordPress dashicons span. Deprecated but still honored.
	IconDashicon IconType = "dashicon"
)

// IconPosition selects where the icon goes relative to the link text.
type IconPosition string

const (
	// IconBefore prepends the icon inside the anchor.
	IconBefore IconPosition = "before"
	// IconAfter appends the icon inside the anchor.
	IconAfter IconPosition = "after"
)

// Markup class names written into annotated anchors.
const (
	// ExternalLinkClass is added to the class attribute of every annotated anchor.
	ExternalLinkClass = "selm-external-link"
	// IconClass marks the icon element; its presence inside an anchor
	// prevents a second icon from being inserted.
	IconClass = "selm-external-icon"
	// CustomIconClass is added to the wrapper of custom icon markup.
	CustomIconClass = "selm-custom-icon"
)

// Default LinkConfiguration values.
const (
	// DefaultIconClass is the extra class applied to SVG icons.
	DefaultIconClass = "selm-external-icon-svg"

	// DefaultIconSVGFile is the bundled SVG used when none is configured or
	// the configured one does not exist.
	DefaultIconSVGFile = "icon-external"

	// DefaultExcludeClass lets authors opt a single link out of annotation.
	DefaultExcludeClass = "no-external"
)

// LinkConfiguration is the immutable per-pass snapshot of annotation options.
// Field names in JSON and YAML match the client-mode bootstrap "config" object.
type LinkConfiguration struct {
	// AddIcon inserts an icon into annotated anchors.
	AddIcon bool `json:"addIcon" yaml:"addIcon"`

	// IconType selects the icon renderer.
	IconType IconType `json:"iconType" yaml:"iconType" validate:"omitempty,oneof=svg fontawesome custom dashicon"`

	// IconClass is an extra CSS class for the icon element.
	IconClass string `json:"iconClass" yaml:"iconClass"`

	// IconSVGFile names the SVG asset (without extension) for IconSVG.
	IconSVGFile string `json:"iconSvgFile" yaml:"iconSvgFile"`

	// IconPosition places the icon before or after the anchor text.
	IconPosition IconPosition `json:"iconPosition" yaml:"iconPosition" validate:"omitempty,oneof=before after"`

	// CustomIcon is the raw markup used by IconCustom.
	CustomIcon string `json:"customIcon" yaml:"customIcon"`

	// AddNofollow adds the "nofollow" rel token.
	AddNofollow bool `json:"addNofollow" yaml:"addNofollow"`

	// AddNoopener adds the "noopener" rel token.
	AddNoopener bool `json:"addNoopener" yaml:"addNoopener"`

	// OpenNewTab sets target="_blank" when the anchor has no target.
	OpenNewTab bool `json:"openNewTab" yaml:"openNewTab"`

	// ExcludeClasses lists class tokens that opt an anchor out.
	ExcludeClasses []string `json:"excludeClasses" yaml:"excludeClasses"`

	// ExcludeDomains lists domains (and their subdomains) never annotated.
	ExcludeDomains []string `json:"excludeDomains" yaml:"excludeDomains" validate:"dive,excludedomain"`
}

// DefaultLinkConfiguration returns the documented per-field defaults.
func DefaultLinkConfiguration() LinkConfiguration {
	return LinkConfiguration{
		AddIcon:        true,
		IconType:       IconSVG,
		IconClass:      DefaultIconClass,
		IconSVGFile:    DefaultIconSVGFile,
		IconPosition:   IconAfter,
		AddNofollow:    true,
		AddNoopener:    true,
		OpenNewTab:     true,
		ExcludeClasses: []string{DefaultExcludeClass},
		ExcludeDomains: []string{},
	}
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (c LinkConfiguration) Clone() LinkConfiguration {
	c.ExcludeClasses = slices.Clone(c.ExcludeClasses)
	c.ExcludeDomains = slices.Clone(c.ExcludeDomains)
	return c
}
