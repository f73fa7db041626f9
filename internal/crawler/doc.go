// Package crawler discovers the pages of a site by following its internal
// links.
//
// # Architecture
//
// The Spider walks a site breadth first from a start URL. Each page is
// fetched once through a Fetcher, its anchors are resolved against the page
// URL, and the links that stay on the site are queued until the depth or
// page limit is reached. Links to other hosts are never fetched: the site
// identity decides what is internal, with the same "www." folding used for
// link classification.
//
// Every page is returned with its fetched body, or with the error that
// prevented fetching it, in crawl order.
//
// # Politeness
//
//   - A configurable delay between requests
//   - Depth and page limits
//   - Ignore and follow patterns on URL paths
//
// # Usage
//
//	spider := crawler.NewSpider(f, site, crawler.WithMaxDepth(2))
//	pages, err := spider.Crawl(ctx, "https://example.com/")
package crawler
