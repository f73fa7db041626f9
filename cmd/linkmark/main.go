// Package main provides the entry point for the linkmark CLI.
//
// linkmark classifies the links of a site's content as internal or external
// and annotates the external ones: target, rel and class attributes plus an
// optional icon.
//
// Usage:
//
//	linkmark rewrite --site https://example.com public/
//	linkmark stats --site https://example.com https://example.com/blog/
//	linkmark serve --site https://example.com --dir public
//	linkmark live --site https://example.com https://example.com/
//
// See --help for all available options.
package main

// main is the entry point for linkmark.
func main() {
	Execute()
}
