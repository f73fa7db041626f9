package icon

import (
	"embed"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/linkmark/internal/model"
)

//go:embed assets/*.svg
var bundled embed.FS

// Renderer produces icon markup for annotated anchors.
// It is safe for concurrent use.
type Renderer struct {
	// assets holds operator supplied SVG files, looked up before the bundled ones.
	assets fs.FS

	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithAssets adds a file system of "<name>.svg" files that take precedence
// over the bundled icons.
func WithAssets(fsys fs.FS) Option {
	return func(r *Renderer) {
		r.assets = fsys
	}
}

// WithLogger sets the logger used to report missing assets.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Render returns the icon markup for the given type. An empty string means
// "no icon", e.g. an empty custom icon or a missing SVG asset.
func (r *Renderer) Render(iconType model.IconType, name, class, custom string) string {
	switch iconType {
	case model.IconFontAwesome:
		return `<i class="` + joinClasses(class, model.IconClass) + `"></i>`
	case model.IconCustom:
		if strings.TrimSpace(custom) == "" {
			return ""
		}
		return `<span class="` + model.IconClass + " " + model.CustomIconClass + `">` + custom + `</span>`
	case model.IconDashicon:
		return `<span class="` + joinClasses("dashicons", class, model.IconClass) + `"></span>`
	default:
		return r.svg(name, class)
	}
}

// SVG returns the raw content of a named SVG asset, falling back to the
// default icon. ok is false when neither exists.
func (r *Renderer) SVG(name string) ([]byte, bool) {
	for _, candidate := range []string{SanitizeFileName(name), model.DefaultIconSVGFile} {
		if candidate == "" {
			continue
		}
		if data, err := r.readAsset(candidate); err == nil {
			return data, true
		}
	}
	return nil, false
}

// Names lists the available SVG icon names, sorted.
func (r *Renderer) Names() []string {
	seen := map[string]bool{}
	collect := func(fsys fs.FS, dir string) {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if name, ok := strings.CutSuffix(e.Name(), ".svg"); ok && !e.IsDir() {
				seen[name] = true
			}
		}
	}
	collect(bundled, "assets")
	if r.assets != nil {
		collect(r.assets, ".")
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Renderer) svg(name, class string) string {
	data, ok := r.SVG(name)
	if !ok {
		r.logger.Debug("svg icon not found", "icon", name)
		return ""
	}
	content := strings.TrimSpace(string(data))
	classAttr := `<svg class="` + joinClasses(model.IconClass, class) + `"`
	return strings.Replace(content, "<svg", classAttr, 1)
}

func (r *Renderer) readAsset(name string) ([]byte, error) {
	file := name + ".svg"
	if r.assets != nil {
		if data, err := fs.ReadFile(r.assets, file); err == nil {
			return data, nil
		}
	}
	return fs.ReadFile(bundled, path.Join("assets", file))
}

// SanitizeFileName reduces an icon name to a safe base name without extension.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".svg")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-_")
}

// joinClasses escapes and joins non-empty class values with single spaces.
func joinClasses(classes ...string) string {
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, html.EscapeString(c))
		}
	}
	return strings.Join(parts, " ")
}
