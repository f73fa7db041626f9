// Package settings provides SQLite-based storage for per-site linkmark
// settings and saved link statistics.
//
// The Store keeps:
//   - One settings row per site host, holding the complete model.Options
//     as JSON. Hosts are stored normalized, so "www.example.com" and
//     "example.com" share a row.
//   - Link statistics reports, so changes in a site's outbound links can be
//     compared over time.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, with WAL
// mode and a single connection since SQLite supports one writer.
package settings
