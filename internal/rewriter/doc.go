// Package rewriter implements server-mode processing: it rewrites a finished
// HTML payload once, annotating every external anchor.
//
// The payload is walked with the golang.org/x/net/html tokenizer rather than a
// regular expression, so anchors inside comments, scripts and other raw text
// are never touched and nested markup inside link text (images, spans, inline
// SVG) is carried along. Only the target, rel and class attributes of an
// annotated anchor are written; every other byte of the payload, including
// attribute quoting, casing and whitespace, is emitted exactly as read.
//
// Anchors without a closing tag, anchors without an href and every
// non-external anchor pass through unchanged.
package rewriter
