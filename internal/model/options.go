package model

// Mode selects the processing strategy.
type Mode string

const (
	// ModeServer rewrites rendered content once, before it is delivered.
	ModeServer Mode = "server"
	// ModeClient leaves content untouched and lets the live DOM processor
	// annotate anchors in the rendered document.
	ModeClient Mode = "client"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeServer || m == ModeClient
}

// Options are the operator settings for one site: the link configuration
// plus the switches that decide whether and where it is applied.
type Options struct {
	// Enabled turns all processing off when false.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Mode selects server-side or client-side processing.
	Mode Mode `json:"mode" yaml:"mode" validate:"oneof=server client"`

	// Link holds the annotation rules.
	Link LinkConfiguration `json:"link" yaml:"link"`

	// CustomCSS is appended to the generated stylesheet.
	CustomCSS string `json:"customCss" yaml:"customCss"`

	// DebugMode enables debug logging for this site.
	DebugMode bool `json:"debugMode" yaml:"debugMode"`

	// Paths limits processing to content whose path matches one of these
	// globs (see MatchPath). Empty processes every path.
	Paths []string `json:"paths,omitempty" yaml:"paths" validate:"dive,pathglob"`
}

// DefaultOptions returns enabled server-mode options with default link rules.
func DefaultOptions() Options {
	return Options{
		Enabled: true,
		Mode:    ModeServer,
		Link:    DefaultLinkConfiguration(),
	}
}
