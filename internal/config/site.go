package config

import (
	"slices"

	"github.com/nao1215/linkmark/internal/model"
)

// SiteConfig holds link annotation settings for one site, or the defaults
// shared by all sites. Every field is optional: nil pointers and nil slices
// leave the underlying value untouched, so a site entry only needs to list
// what differs from the defaults. Keys match the client bootstrap config.
type SiteConfig struct {
	Enabled   *bool       `yaml:"enabled,omitempty"`
	Mode      *model.Mode `yaml:"mode,omitempty"`
	CustomCSS *string     `yaml:"customCss,omitempty"`
	DebugMode *bool       `yaml:"debugMode,omitempty"`

	AddIcon      *bool               `yaml:"addIcon,omitempty"`
	IconType     *model.IconType     `yaml:"iconType,omitempty"`
	IconClass    *string             `yaml:"iconClass,omitempty"`
	IconSVGFile  *string             `yaml:"iconSvgFile,omitempty"`
	IconPosition *model.IconPosition `yaml:"iconPosition,omitempty"`
	CustomIcon   *string             `yaml:"customIcon,omitempty"`

	AddNofollow *bool `yaml:"addNofollow,omitempty"`
	AddNoopener *bool `yaml:"addNoopener,omitempty"`
	OpenNewTab  *bool `yaml:"openNewTab,omitempty"`

	// ExcludeClasses replaces the inherited list when non-nil.
	// An explicit empty list clears it.
	ExcludeClasses []string `yaml:"excludeClasses"`

	// ExcludeDomains replaces the inherited list when non-nil.
	ExcludeDomains []string `yaml:"excludeDomains"`

	// Paths replaces the inherited path scopes when non-nil.
	Paths []string `yaml:"paths"`
}

// Apply overlays the fields set in s onto opts.
func (s SiteConfig) Apply(opts model.Options) model.Options {
	opts.Link = opts.Link.Clone()

	set(&opts.Enabled, s.Enabled)
	set(&opts.Mode, s.Mode)
	set(&opts.CustomCSS, s.CustomCSS)
	set(&opts.DebugMode, s.DebugMode)

	link := &opts.Link
	set(&link.AddIcon, s.AddIcon)
	set(&link.IconType, s.IconType)
	set(&link.IconClass, s.IconClass)
	set(&link.IconSVGFile, s.IconSVGFile)
	set(&link.IconPosition, s.IconPosition)
	set(&link.CustomIcon, s.CustomIcon)
	set(&link.AddNofollow, s.AddNofollow)
	set(&link.AddNoopener, s.AddNoopener)
	set(&link.OpenNewTab, s.OpenNewTab)

	if s.ExcludeClasses != nil {
		link.ExcludeClasses = slices.Clone(s.ExcludeClasses)
	}
	if s.ExcludeDomains != nil {
		link.ExcludeDomains = slices.Clone(s.ExcludeDomains)
	}
	if s.Paths != nil {
		opts.Paths = slices.Clone(s.Paths)
	}
	return opts
}

// FromOptions returns a SiteConfig with every field set from opts.
func FromOptions(opts model.Options) SiteConfig {
	l := opts.Link
	return SiteConfig{
		Enabled:        &opts.Enabled,
		Mode:           &opts.Mode,
		CustomCSS:      &opts.CustomCSS,
		DebugMode:      &opts.DebugMode,
		AddIcon:        &l.AddIcon,
		IconType:       &l.IconType,
		IconClass:      &l.IconClass,
		IconSVGFile:    &l.IconSVGFile,
		IconPosition:   &l.IconPosition,
		CustomIcon:     &l.CustomIcon,
		AddNofollow:    &l.AddNofollow,
		AddNoopener:    &l.AddNoopener,
		OpenNewTab:     &l.OpenNewTab,
		ExcludeClasses: nonNil(l.ExcludeClasses),
		ExcludeDomains: nonNil(l.ExcludeDomains),
		Paths:          nonNil(opts.Paths),
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// File represents the structure of the .linkmark configuration file.
type File struct {
	// Sites maps site hosts to their site-specific configurations.
	// Keys are host names without scheme; a leading "www." is ignored.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to every site before its own entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// Options returns the built-in defaults overlaid with the file defaults and
// the entry for host. A nil File yields the built-in defaults.
func (cf *File) Options(host string) model.Options {
	opts := model.DefaultOptions()
	if cf == nil {
		return opts
	}

	opts = cf.Defaults.Apply(opts)
	if site, ok := cf.lookup(host); ok {
		opts = site.Apply(opts)
	}
	return opts
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	if site, ok := cf.Sites[host]; ok {
		return site, true
	}
	want := model.NormalizeHost(host)
	for key, site := range cf.Sites {
		if model.NormalizeHost(key) == want {
			return site, true
		}
	}
	return SiteConfig{}, false
}
