package config

import (
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/linkmark/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkmark"

	// DefaultTimeout bounds every HTTP request made to fetch a page.
	// Pages are fetched once per run, so a generous value costs little.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of files or URLs processed at once.
	DefaultConcurrency = 8

	// DefaultUserAgent identifies linkmark in HTTP requests.
	DefaultUserAgent = "linkmark/1.0 (+https://github.com/nao1215/linkmark)"

	// DefaultMaxBodySize limits the response body read from a fetched page.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultAddr is the listen address of the serve command.
	DefaultAddr = ":8080"

	// DefaultBootstrapTTL is how long a client-mode bootstrap payload stays cached.
	DefaultBootstrapTTL = time.Hour

	// DefaultWatchDelay coalesces bursts of file system events in watch mode.
	DefaultWatchDelay = 200 * time.Millisecond

	// DefaultMaxPages bounds a crawl started from each URL target.
	DefaultMaxPages = 100

	// DefaultCrawlDelay is the pause between crawl requests.
	DefaultCrawlDelay = 100 * time.Millisecond
)

// Config holds the options shared by linkmark commands.
// It is populated from CLI flags and passed to the components that need it.
type Config struct {
	// SiteURL is the canonical base URL of the site, e.g. "https://example.com".
	// Its host and scheme form the SiteIdentity used for classification.
	SiteURL string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches the locations listed in FindConfigFile.
	ConfigFilePath string

	// File holds the parsed configuration file. Nil when none was found.
	File *File

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches the log format from text to JSON.
	JSONLog bool

	// LogFile additionally writes logs to a rotated file.
	LogFile string

	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent when fetching pages.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// ProxyURL routes page fetches through a SOCKS5 proxy ("socks5://host:port").
	ProxyURL string

	// Concurrency is the number of inputs processed in parallel.
	Concurrency int

	// JSONReport selects JSON output for statistics.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output for statistics.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// Targets are the files, directories or URLs a command works on.
	Targets []string

	// OutDir is where rewritten files are written. Empty rewrites in place.
	OutDir string

	// Watch keeps rewriting targets as they change.
	Watch bool

	// IconDir holds operator SVG icons ("<name>.svg") that take precedence
	// over the bundled ones.
	IconDir string

	// DBDir is the directory holding the settings database.
	// Defaults to the XDG data directory (~/.local/share/linkmark on Linux).
	DBDir string

	// RedisURL selects a shared Redis bootstrap cache ("redis://host:6379/0").
	// Empty uses an in-process cache.
	RedisURL string

	// BootstrapTTL is the lifetime of cached bootstrap payloads.
	BootstrapTTL time.Duration

	// CrawlDepth follows internal links of URL targets this many levels
	// deep. 0 analyzes only the given URLs.
	CrawlDepth int

	// MaxPages limits the pages requested per crawled target.
	MaxPages int

	// CrawlDelay is the pause between crawl requests.
	CrawlDelay time.Duration

	// IgnorePatterns are URL path globs never crawled (e.g. "/tag/*").
	IgnorePatterns []string

	// FollowPatterns, when set, restrict crawling to matching URL paths.
	FollowPatterns []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		Concurrency:  DefaultConcurrency,
		BootstrapTTL: DefaultBootstrapTTL,
		MaxPages:     DefaultMaxPages,
		CrawlDelay:   DefaultCrawlDelay,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for linkmark.
// On Linux: ~/.local/share/linkmark
// On macOS: ~/Library/Application Support/linkmark
// On Windows: %LOCALAPPDATA%\linkmark
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkmark.
// On Linux: ~/.config/linkmark
// On macOS: ~/Library/Application Support/linkmark
// On Windows: %APPDATA%\linkmark
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Site returns the site identity derived from SiteURL.
func (c *Config) Site() (model.SiteIdentity, error) {
	if c.SiteURL == "" {
		return model.SiteIdentity{}, ErrNoSite
	}
	site, err := model.ParseSiteIdentity(c.SiteURL)
	if err != nil {
		return model.SiteIdentity{}, ErrInvalidSiteURL
	}
	return site, nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.Watch && c.OutDir == "" {
		return ErrWatchRequiresOutDir
	}

	if c.CrawlDepth < 0 || c.MaxPages < 0 || c.CrawlDelay < 0 {
		return ErrInvalidCrawl
	}

	if c.IconDir != "" {
		if info, err := os.Stat(c.IconDir); err != nil || !info.IsDir() {
			return ErrInvalidIconDir
		}
	}

	if c.SiteURL != "" {
		if _, err := c.Site(); err != nil {
			return err
		}
	}

	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") || u.Host == "" {
			return ErrInvalidProxyURL
		}
	}

	return nil
}

// ValidateTargets reports ErrNoTarget when no targets were given.
func (c *Config) ValidateTargets() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return nil
}
