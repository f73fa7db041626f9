// Package processor implements the client-mode Live DOM Processor.
//
// A Processor annotates the external anchors of one live document and keeps
// doing so as the document changes:
//
//   - Start enumerates a[href] elements and processes them in batches. The
//     first batch runs immediately, every following batch is deferred to the
//     next frame so a large document never blocks rendering for long.
//   - Every anchor is processed at most once per document lifetime. Its key
//     is recorded in the processed set whether or not it was annotated.
//   - When an Observer reports added subtrees that contain anchors, a rescan
//     is scheduled after a debounce window. A later burst replaces the
//     pending rescan instead of queuing another one.
//   - Stop unsubscribes from the Observer, cancels the pending rescan and
//     releases the processed set.
//
// A Processor is not safe for concurrent use. Start, Stop and every task it
// schedules run on the Scheduler's goroutine; internal/eventloop provides one.
// Observer callbacks may arrive on any goroutine and are handed to the
// Scheduler with Post. Stats may be read from any goroutine.
package processor
