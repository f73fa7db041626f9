package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/linkmark/internal/dom"
)

const bindingName = "__linkmark_binding"

//go:embed observer.js
var observerJS string

const disconnectJS = `() => {
  if (window.__linkmarkObserver) {
    window.__linkmarkObserver.disconnect();
    window.__linkmarkObserver = null;
  }
}`

// Page is a browser tab usable as a dom.Document and dom.Observer.
type Page struct {
	page   *rod.Page
	url    string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	observing bool
}

func newPage(ctx context.Context, page *rod.Page, url string, logger *slog.Logger) *Page {
	ctx, cancel := context.WithCancel(ctx)
	return &Page{
		page:   page,
		url:    url,
		logger: logger.With("url", url),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Anchors implements dom.Document.
func (p *Page) Anchors() ([]dom.Anchor, error) {
	els, err := p.page.Context(p.ctx).Elements("a[href]")
	if err != nil {
		return nil, fmt.Errorf("failed to query anchors: %w", err)
	}

	anchors := make([]dom.Anchor, 0, len(els))
	for _, el := range els {
		node, err := el.Describe(0, false)
		if err != nil {
			p.logger.Debug("failed to describe anchor", "error", err)
			continue
		}
		anchors = append(anchors, &anchor{el: el, key: dom.NodeKey(node.BackendNodeID)})
	}
	return anchors, nil
}

// Observe implements dom.Observer. Only one subscription is supported per
// page.
func (p *Page) Observe(onAdded func([]dom.AddedNode)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observing {
		return nil, fmt.Errorf("page %s is already observed", p.url)
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.page); err != nil {
		return nil, fmt.Errorf("%w: add binding: %v", dom.ErrObservationUnsupported, err)
	}

	ctx, cancel := context.WithCancel(p.ctx)
	wait := p.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		added, err := decodeAddedNodes(e.Payload)
		if err != nil {
			p.logger.Debug("failed to decode mutation payload", "error", err)
			return
		}
		onAdded(added)
	})
	go wait()

	if _, err := p.page.Context(ctx).Eval(observerJS); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: inject observer: %v", dom.ErrObservationUnsupported, err)
	}
	p.observing = true

	return func() {
		if _, err := p.page.Eval(disconnectJS); err != nil {
			p.logger.Debug("failed to disconnect observer", "error", err)
		}
		cancel()
		p.mu.Lock()
		p.observing = false
		p.mu.Unlock()
	}, nil
}

// HTML returns the serialized document.
func (p *Page) HTML() (string, error) {
	res, err := p.page.Context(p.ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (p *Page) Close() error {
	p.cancel()
	return p.page.Close()
}

type addedNodePayload struct {
	Tag            string `json:"tag"`
	ContainsAnchor bool   `json:"contains_anchor"`
}

func decodeAddedNodes(payload string) ([]dom.AddedNode, error) {
	var raw []addedNodePayload
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	out := make([]dom.AddedNode, 0, len(raw))
	for _, r := range raw {
		out = append(out, dom.AddedNode{Tag: r.Tag, ContainsAnchor: r.ContainsAnchor})
	}
	return out, nil
}

type anchor struct {
	el  *rod.Element
	key dom.NodeKey
}

func (a *anchor) Key() dom.NodeKey { return a.key }

func (a *anchor) Attr(name string) (string, bool) {
	v, err := a.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (a *anchor) SetAttr(name, value string) error {
	_, err := a.el.Eval(`(n, v) => this.setAttribute(n, v)`, name, value)
	return err
}

func (a *anchor) HasDescendant(class string) bool {
	has, _, err := a.el.Has("." + class)
	return err == nil && has
}

func (a *anchor) InsertHTML(pos dom.InsertPosition, markup string) error {
	_, err := a.el.Eval(`(p, m) => this.insertAdjacentHTML(p, m)`, string(pos), markup)
	return err
}
