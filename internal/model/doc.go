// Package model defines the data structures shared by the link classifier,
// the annotator and both rewriters.
//
// This package contains the following main types:
//   - SiteIdentity: the canonical host and scheme of the processed site
//   - LinkConfiguration: the immutable annotation rules for one pass
//   - Options: operator switches (enabled, mode, custom CSS) around the rules
//   - AnchorRecord: the attributes of one anchor at inspection time
//   - Classification: the classifier verdict for one anchor
//   - AttributeDelta: the attribute and icon changes the annotator requests
//   - LinkStats / StatsReport: link statistics for reporting
//   - Bootstrap: the client-mode startup payload
//
// The types carry JSON tags matching the client-mode bootstrap payload so the
// same values travel between the configuration provider, the HTTP server and
// the live processor.
package model
