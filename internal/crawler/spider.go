package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/model"
)

// Default crawl limits.
const (
	DefaultMaxDepth = 2
	DefaultMaxPages = 100
	DefaultDelay    = 100 * time.Millisecond
)

// ErrOffSite is returned when the start URL does not belong to the site.
var ErrOffSite = errors.New("start URL is not on the site")

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Page is one crawled page.
type Page struct {
	// URL is the URL the page was requested with.
	URL string

	// Depth is the number of links followed from the start URL.
	Depth int

	// Body is the fetched HTML. Empty when Err is set.
	Body string

	// Err is set when the page could not be fetched or is not HTML.
	Err error
}

// Spider crawls the pages of one site.
// It manages a queue of URLs to visit and respects depth and page limits.
type Spider struct {
	fetcher Fetcher
	site    model.SiteIdentity

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the number of pages requested.
	maxPages int

	// delay is the time to wait between requests.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. Negative values are treated as 0.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = max(depth, 0)
	}
}

// WithMaxPages sets the maximum number of pages to request.
// Non-positive values keep the default.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages > 0 {
			s.maxPages = maxPages
		}
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = max(d, 0)
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching at least one
// pattern. The start URL is always requested.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches pages of site through f.
func NewSpider(f Fetcher, site model.SiteIdentity, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  f,
		site:     site,
		maxDepth: DefaultMaxDepth,
		maxPages: DefaultMaxPages,
		delay:    DefaultDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// Crawl requests startURL and the site pages reachable from it, breadth
// first. The returned pages are in request order. The error is non-nil
// only for an invalid or off-site start URL, or when ctx is cancelled; in
// the latter case the pages crawled so far are returned as well.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", fetcher.ErrUnsupportedURL, startURL)
	}
	if !s.onSite(start) {
		return nil, fmt.Errorf("%w: %s is not %s", ErrOffSite, startURL, s.site.Host)
	}

	// The start page is reported in the same form as discovered pages.
	startKey := normalizeURL(start)
	var pages []Page
	visited := map[string]bool{startKey: true}
	queue := []queueItem{{url: startKey, depth: 0}}

	for len(queue) > 0 && len(pages) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if len(pages) > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		item := queue[0]
		queue = queue[1:]

		page, links := s.fetchPage(ctx, item)
		if page.Err != nil && ctx.Err() != nil {
			return pages, ctx.Err()
		}
		pages = append(pages, page)

		if item.depth >= s.maxDepth {
			continue
		}
		for _, link := range links {
			u, err := url.Parse(link)
			if err != nil || !s.onSite(u) || !s.shouldCrawl(u) {
				continue
			}
			key := normalizeURL(u)
			if visited[key] {
				continue
			}
			visited[key] = true
			queue = append(queue, queueItem{url: link, depth: item.depth + 1})
		}
	}

	s.logger.Debug("crawl finished",
		"start", startURL,
		"pages", len(pages),
		"unvisited", len(queue))
	return pages, nil
}

// fetchPage fetches one page and extracts its links. Links are only
// extracted when the final URL is still on the site.
func (s *Spider) fetchPage(ctx context.Context, item queueItem) (Page, []string) {
	page := Page{URL: item.url, Depth: item.depth}

	fetched, err := s.fetcher.Fetch(ctx, item.url)
	if err != nil {
		s.logger.Debug("crawl fetch failed", "url", item.url, "error", err)
		page.Err = err
		return page, nil
	}
	if !fetched.IsHTML() {
		page.Err = fmt.Errorf("not an HTML page: %s (%s)", item.url, fetched.ContentType)
		return page, nil
	}
	page.Body = fetched.Body

	final, err := url.Parse(fetched.URL)
	if err != nil || !s.onSite(final) {
		return page, nil
	}
	links, err := ExtractLinks(final, strings.NewReader(fetched.Body))
	if err != nil {
		s.logger.Debug("failed to extract links", "url", item.url, "error", err)
		return page, nil
	}
	return page, links
}

// onSite reports whether u points at the crawled site. A leading "www."
// is ignored on both sides.
func (s *Spider) onSite(u *url.URL) bool {
	return model.NormalizeHost(u.Hostname()) == s.site.NormalizedHost()
}

// normalizeURL normalizes a URL for deduplication: lowercase scheme and
// host, no fragment, and "/" for an empty path.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" {
		n.Path = "/"
	}
	return n.String()
}

// shouldCrawl checks u against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Spider) shouldCrawl(u *url.URL) bool {
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if model.MatchPath(pattern, p) {
			return false
		}
	}
	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if model.MatchPath(pattern, p) {
			return true
		}
	}
	return false
}
