package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLDocument is an in-memory Document and Observer backed by goquery.
// It is safe for concurrent use; observer callbacks run on the goroutine
// that performed the mutation, after the document lock is released.
type HTMLDocument struct {
	mu        sync.Mutex
	doc       *goquery.Document
	keys      map[*html.Node]NodeKey
	nextKey   NodeKey
	observers map[int]func([]AddedNode)
	nextObs   int
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &HTMLDocument{
		doc:       doc,
		keys:      make(map[*html.Node]NodeKey),
		observers: make(map[int]func([]AddedNode)),
	}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*HTMLDocument, error) {
	return Parse(strings.NewReader(s))
}

// Anchors implements Document.
func (d *HTMLDocument) Anchors() ([]Anchor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.doc.Find("a[href]")
	anchors := make([]Anchor, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		anchors = append(anchors, &htmlAnchor{doc: d, sel: s, key: d.keyLocked(node)})
	})
	return anchors, nil
}

// Observe implements Observer.
func (d *HTMLDocument) Observe(onAdded func([]AddedNode)) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextObs
	d.nextObs++
	d.observers[id] = onAdded

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}, nil
}

// AppendHTML parses markup and appends it to the first element matching
// selector, notifying observers. It simulates content inserted by scripts.
func (d *HTMLDocument) AppendHTML(selector, markup string) error {
	d.mu.Lock()
	target := d.doc.Find(selector)
	if target.Length() == 0 {
		d.mu.Unlock()
		return fmt.Errorf("no element matches %q", selector)
	}
	added, err := d.insertLocked(target.Get(0), BeforeEnd, markup)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(added)
	return nil
}

// HTML renders the whole document.
func (d *HTMLDocument) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	if err := html.Render(&b, d.doc.Get(0)); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return b.String(), nil
}

// Selection returns the goquery selection for selector. The selection must
// not be mutated while the document is in use by a processor.
func (d *HTMLDocument) Selection(selector string) *goquery.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector)
}

func (d *HTMLDocument) keyLocked(n *html.Node) NodeKey {
	if k, ok := d.keys[n]; ok {
		return k
	}
	d.nextKey++
	d.keys[n] = d.nextKey
	return d.nextKey
}

func (d *HTMLDocument) insertLocked(parent *html.Node, pos InsertPosition, markup string) ([]AddedNode, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	ref := (*html.Node)(nil)
	if pos == AfterBegin {
		ref = parent.FirstChild
	}

	var added []AddedNode
	for _, n := range nodes {
		parent.InsertBefore(n, ref)
		if n.Type == html.ElementNode {
			added = append(added, AddedNode{Tag: n.Data, ContainsAnchor: containsAnchor(n)})
		}
	}
	return added, nil
}

func (d *HTMLDocument) notify(added []AddedNode) {
	if len(added) == 0 {
		return
	}

	d.mu.Lock()
	callbacks := make([]func([]AddedNode), 0, len(d.observers))
	for _, cb := range d.observers {
		callbacks = append(callbacks, cb)
	}
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(added)
	}
}

func containsAnchor(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.A {
			return true
		}
		if containsAnchor(c) {
			return true
		}
	}
	return false
}

type htmlAnchor struct {
	doc *HTMLDocument
	sel *goquery.Selection
	key NodeKey
}

func (a *htmlAnchor) Key() NodeKey { return a.key }

func (a *htmlAnchor) Attr(name string) (string, bool) {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	return a.sel.Attr(name)
}

func (a *htmlAnchor) SetAttr(name, value string) error {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	a.sel.SetAttr(name, value)
	return nil
}

func (a *htmlAnchor) HasDescendant(class string) bool {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()

	found := false
	a.sel.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = s.HasClass(class)
		return !found
	})
	return found
}

func (a *htmlAnchor) InsertHTML(pos InsertPosition, markup string) error {
	if pos != AfterBegin && pos != BeforeEnd {
		return fmt.Errorf("unsupported insert position %q", pos)
	}

	a.doc.mu.Lock()
	added, err := a.doc.insertLocked(a.sel.Get(0), pos, markup)
	a.doc.mu.Unlock()
	if err != nil {
		return err
	}

	a.doc.notify(added)
	return nil
}
