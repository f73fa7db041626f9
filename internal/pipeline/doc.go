// Package pipeline runs server-mode jobs over many content files and URLs.
//
// Every input becomes a Document that flows through an ordered list of
// steps: load, rewrite or analyze, write. A BatchProcessor runs one
// pipeline per document with bounded concurrency, and a Watcher reruns
// the batch when watched directories change.
//
// Failures are recorded on the Document and never abort the batch.
package pipeline
