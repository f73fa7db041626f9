// Package dom describes the live document the client-mode processor works
// on: anchors that can be read and mutated in place, and an optional
// capability that reports subtrees added to the document.
//
// Two implementations exist. HTMLDocument in this package keeps a parsed
// document in memory and is used for files and tests; internal/browser
// drives a real page through the Chrome DevTools Protocol.
package dom

import "errors"

// ErrObservationUnsupported is returned by Observer.Observe when the host
// cannot report mutations. Callers fall back to a single initial pass.
var ErrObservationUnsupported = errors.New("dom: mutation observation unsupported")

// NodeKey identifies an element for the lifetime of its document.
type NodeKey int64

// InsertPosition mirrors the positions accepted by insertAdjacentHTML that
// keep inserted markup inside the element.
type InsertPosition string

const (
	// AfterBegin inserts before the first child.
	AfterBegin InsertPosition = "afterbegin"
	// BeforeEnd inserts after the last child.
	BeforeEnd InsertPosition = "beforeend"
)

// Anchor is one <a href> element of a live document.
type Anchor interface {
	// Key returns the stable identity of the element.
	Key() NodeKey
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool)
	// SetAttr writes an attribute, replacing any previous value.
	SetAttr(name, value string) error
	// HasDescendant reports whether any element inside the anchor carries
	// the class token.
	HasDescendant(class string) bool
	// InsertHTML parses markup and inserts it inside the anchor.
	InsertHTML(pos InsertPosition, markup string) error
}

// Document enumerates the anchors currently in the document.
type Document interface {
	// Anchors returns every element matching a[href], in document order.
	Anchors() ([]Anchor, error)
}

// AddedNode summarizes one element that was inserted into the document.
type AddedNode struct {
	// Tag is the lower-case element name.
	Tag string
	// ContainsAnchor is true when the subtree rooted at the element
	// contains an <a> element.
	ContainsAnchor bool
}

// HasAnchor reports whether the added subtree is or contains an anchor.
func (n AddedNode) HasAnchor() bool {
	return n.Tag == "a" || n.ContainsAnchor
}

// Observer is the mutation subscription capability. The callback may be
// invoked from any goroutine.
type Observer interface {
	// Observe registers onAdded and returns a function that unsubscribes.
	Observe(onAdded func([]AddedNode)) (stop func(), err error)
}

// Unobservable is an Observer for hosts without mutation reporting.
type Unobservable struct{}

// Observe always returns ErrObservationUnsupported.
func (Unobservable) Observe(func([]AddedNode)) (func(), error) {
	return nil, ErrObservationUnsupported
}
