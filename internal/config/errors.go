package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and ValidateOptions so
// callers can use errors.Is for programmatic error handling.
var (
	// ErrNoTarget is returned when a command that needs input got none.
	ErrNoTarget = errors.New("no target specified: provide a file, directory or URL")

	// ErrNoSite is returned when the site URL is required but missing.
	ErrNoSite = errors.New("no site specified: use --site with the canonical base URL")

	// ErrInvalidSiteURL is returned when the site URL is not an absolute
	// http or https URL with a host.
	ErrInvalidSiteURL = errors.New("invalid site URL: must be an absolute http(s) URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxyURL is returned when the proxy is not a socks5 URL.
	ErrInvalidProxyURL = errors.New("invalid proxy URL: must be socks5://host:port")

	// ErrWatchRequiresOutDir is returned when watch mode would rewrite the
	// watched files in place and trigger itself.
	ErrWatchRequiresOutDir = errors.New("watch mode requires --out outside the watched directories")

	// ErrInvalidIconDir is returned when the icon directory does not exist.
	ErrInvalidIconDir = errors.New("invalid icon directory: must be an existing directory")

	// ErrInvalidCrawl is returned for a negative crawl depth, page limit or delay.
	ErrInvalidCrawl = errors.New("invalid crawl settings: depth, max pages and delay must not be negative")

	// ErrInvalidMode is returned when the processing mode is not server or client.
	ErrInvalidMode = errors.New("invalid mode: must be server or client")

	// ErrInvalidIconType is returned for an unknown icon type.
	ErrInvalidIconType = errors.New("invalid icon type: must be svg, fontawesome, custom or dashicon")

	// ErrInvalidIconPosition is returned for an icon position other than before or after.
	ErrInvalidIconPosition = errors.New("invalid icon position: must be before or after")

	// ErrInvalidPathScope is returned for an empty or malformed path glob.
	ErrInvalidPathScope = errors.New("invalid path scope: must be a glob such as /blog/*")

	// ErrInvalidExcludeDomain is returned when an excluded domain is not a hostname.
	ErrInvalidExcludeDomain = errors.New("invalid exclude domain: must be a hostname")
)
