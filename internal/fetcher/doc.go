// Package fetcher downloads single HTML pages so their links can be
// analyzed or rewritten.
//
// The fetcher never follows the links it finds: classification is a pure
// function of the href and the site identity, so link destinations are
// never contacted. Requests can be routed through a SOCKS5 proxy.
//
// Pages are read fully into memory up to a size limit. Bodies beyond the
// limit are truncated, not rejected, and Page.Truncated is set.
package fetcher
