package model

import (
	"path"
	"strings"
)

// MatchPath reports whether a slash separated path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match a path prefix at any depth
//   - a leading "*." to match an extension anywhere
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func MatchPath(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(urlPath, ext) {
			return true
		}
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}
	return false
}

// InScope reports whether content at urlPath is processed. Without path
// scopes every path is. urlPath is treated as rooted at "/".
func (o Options) InScope(urlPath string) bool {
	if len(o.Paths) == 0 {
		return true
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	for _, pattern := range o.Paths {
		if MatchPath(pattern, urlPath) {
			return true
		}
	}
	return false
}
