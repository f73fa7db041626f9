package processor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkmark/internal/dom"
	"github.com/nao1215/linkmark/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testBootstrap() model.Bootstrap {
	cfg := model.DefaultLinkConfiguration()
	cfg.AddIcon = false
	return model.NewBootstrap(model.NewSiteIdentity("mysite.com", "https"), &cfg)
}

// fakeAnchor records every mutation applied to it.
type fakeAnchor struct {
	key      dom.NodeKey
	attrs    map[string]string
	sets     int
	inserts  []string
	setErr   error
	panicked bool
}

func newFakeAnchor(key int, href string) *fakeAnchor {
	return &fakeAnchor{key: dom.NodeKey(key), attrs: map[string]string{"href": href}}
}

func (a *fakeAnchor) Key() dom.NodeKey { return a.key }

func (a *fakeAnchor) Attr(name string) (string, bool) {
	if a.panicked {
		panic("malformed attribute")
	}
	v, ok := a.attrs[name]
	return v, ok
}

func (a *fakeAnchor) SetAttr(name, value string) error {
	if a.setErr != nil {
		return a.setErr
	}
	a.sets++
	a.attrs[name] = value
	return nil
}

func (a *fakeAnchor) HasDescendant(string) bool { return false }

func (a *fakeAnchor) InsertHTML(pos dom.InsertPosition, markup string) error {
	a.inserts = append(a.inserts, string(pos)+":"+markup)
	return nil
}

// fakeDocument is a mutable anchor list plus an Observer.
type fakeDocument struct {
	anchors      []dom.Anchor
	enumerations int
	callback     func([]dom.AddedNode)
	unsubscribed bool
	observeErr   error
}

func (d *fakeDocument) Anchors() ([]dom.Anchor, error) {
	d.enumerations++
	return append([]dom.Anchor(nil), d.anchors...), nil
}

func (d *fakeDocument) Observe(cb func([]dom.AddedNode)) (func(), error) {
	if d.observeErr != nil {
		return nil, d.observeErr
	}
	d.callback = cb
	return func() { d.unsubscribed = true }, nil
}

func (d *fakeDocument) add(a *fakeAnchor) {
	d.anchors = append(d.anchors, a)
	if d.callback != nil && !d.unsubscribed {
		d.callback([]dom.AddedNode{{Tag: "a"}})
	}
}

func externalAnchors(n, first int) []*fakeAnchor {
	out := make([]*fakeAnchor, n)
	for i := range out {
		out[i] = newFakeAnchor(first+i, fmt.Sprintf("https://ext%d.example/", first+i))
	}
	return out
}

func newFakeDocument(anchors []*fakeAnchor) *fakeDocument {
	d := &fakeDocument{}
	for _, a := range anchors {
		d.anchors = append(d.anchors, a)
	}
	return d
}

func TestBatchCompleteness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		anchors   int
		batchSize int
		batches   int
	}{
		{name: "smaller than one batch", anchors: 10, batchSize: 50, batches: 1},
		{name: "exact multiple", anchors: 100, batchSize: 50, batches: 2},
		{name: "default batch size", anchors: 123, batchSize: 0, batches: 3},
		{name: "batch of one", anchors: 7, batchSize: 1, batches: 7},
		{name: "empty document", anchors: 0, batchSize: 50, batches: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			anchors := externalAnchors(tt.anchors, 1)
			doc := newFakeDocument(anchors)
			sched := &manualScheduler{}

			var passes []Pass
			p := New(doc, sched, testBootstrap(),
				WithLogger(discard),
				WithBatchSize(tt.batchSize),
				WithPassCompleteHook(func(pass Pass) { passes = append(passes, pass) }),
			)
			if err := p.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			firstBatch := min(tt.anchors, tt.batchSize)
			if tt.batchSize == 0 {
				firstBatch = min(tt.anchors, DefaultBatchSize)
			}
			if got := p.Stats().Processed; got != int64(firstBatch) {
				t.Errorf("processed before first frame = %d, want %d", got, firstBatch)
			}

			frames := sched.drainFrames()
			if frames != tt.batches-1 {
				t.Errorf("frames = %d, want %d", frames, tt.batches-1)
			}

			for _, a := range anchors {
				if a.sets != 3 {
					t.Errorf("anchor %d got %d attribute writes, want 3", a.key, a.sets)
				}
			}
			if len(passes) != 1 {
				t.Fatalf("passes = %d, want 1", len(passes))
			}
			want := Pass{RunID: p.ID(), Scan: 1, Anchors: tt.anchors, Processed: tt.anchors, Annotated: tt.anchors, Batches: tt.batches}
			if passes[0] != want {
				t.Errorf("pass = %+v, want %+v", passes[0], want)
			}
		})
	}
}

func TestDebounceCoalescing(t *testing.T) {
	t.Parallel()

	doc := newFakeDocument(externalAnchors(3, 1))
	sched := &manualScheduler{}
	p := New(doc, sched, testBootstrap(), WithLogger(discard))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	added := externalAnchors(5, 100)
	for _, a := range added {
		doc.add(a)
		sched.advance(20 * time.Millisecond)
	}
	if got := p.Stats().Scans; got != 1 {
		t.Fatalf("scans during burst = %d, want 1", got)
	}
	if got := sched.pendingTimers(); got != 1 {
		t.Errorf("pending timers = %d, want 1", got)
	}

	sched.advance(79 * time.Millisecond)
	if got := p.Stats().Scans; got != 1 {
		t.Fatalf("scans before the window closed = %d, want 1", got)
	}

	sched.advance(time.Millisecond)
	sched.drainFrames()
	if got := p.Stats().Scans; got != 2 {
		t.Errorf("scans after the window closed = %d, want 2", got)
	}
	for _, a := range added {
		if a.sets != 3 {
			t.Errorf("added anchor %d got %d attribute writes, want 3", a.key, a.sets)
		}
	}

	sched.advance(time.Second)
	if got := p.Stats().Scans; got != 2 {
		t.Errorf("scans after idling = %d, want 2", got)
	}
}

func TestRescanSkipsProcessedAnchors(t *testing.T) {
	t.Parallel()

	initial := externalAnchors(4, 1)
	doc := newFakeDocument(initial)
	sched := &manualScheduler{}

	var passes []Pass
	p := New(doc, sched, testBootstrap(), WithLogger(discard),
		WithPassCompleteHook(func(pass Pass) { passes = append(passes, pass) }))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	extra := newFakeAnchor(50, "https://late.example/")
	doc.add(extra)
	sched.advance(DefaultDebounce)

	if len(passes) != 2 {
		t.Fatalf("passes = %d, want 2", len(passes))
	}
	if passes[1].Anchors != 5 || passes[1].Processed != 1 {
		t.Errorf("rescan pass = %+v, want 5 anchors and 1 processed", passes[1])
	}
	for _, a := range initial {
		if a.sets != 3 {
			t.Errorf("anchor %d written %d times, want 3", a.key, a.sets)
		}
	}
	if got := p.Stats().Processed; got != 5 {
		t.Errorf("Processed = %d, want 5", got)
	}
}

func TestOverlappingScansProcessOnce(t *testing.T) {
	t.Parallel()

	anchors := externalAnchors(120, 1)
	doc := newFakeDocument(anchors)
	sched := &manualScheduler{}
	p := New(doc, sched, testBootstrap(), WithLogger(discard))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// A rescan fires while the initial pass still has frames queued.
	doc.add(newFakeAnchor(999, "https://late.example/"))
	sched.advance(DefaultDebounce)
	sched.drainFrames()

	for _, a := range anchors {
		if a.sets != 3 {
			t.Errorf("anchor %d written %d times, want 3", a.key, a.sets)
		}
	}
	if got := p.Stats().Processed; got != 121 {
		t.Errorf("Processed = %d, want 121", got)
	}
}

func TestNonAnchorMutationsIgnored(t *testing.T) {
	t.Parallel()

	doc := newFakeDocument(externalAnchors(1, 1))
	sched := &manualScheduler{}
	p := New(doc, sched, testBootstrap(), WithLogger(discard))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	doc.callback([]dom.AddedNode{{Tag: "div"}, {Tag: "span"}})
	sched.advance(time.Second)

	if got := p.Stats().Scans; got != 1 {
		t.Errorf("Scans = %d, want 1", got)
	}
}

func TestPerAnchorFailures(t *testing.T) {
	t.Parallel()

	anchors := externalAnchors(4, 1)
	anchors[1].setErr = errors.New("detached node")
	anchors[2].panicked = true
	doc := newFakeDocument(anchors)
	sched := &manualScheduler{}
	p := New(doc, sched, testBootstrap(), WithLogger(discard))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stats := p.Stats()
	want := Stats{Scans: 1, Processed: 4, Annotated: 2, Failures: 2}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
	if anchors[0].sets != 3 || anchors[3].sets != 3 {
		t.Error("healthy anchors were not annotated")
	}
}

func TestClassificationOutcomes(t *testing.T) {
	t.Parallel()

	anchors := []*fakeAnchor{
		newFakeAnchor(1, "/about"),
		newFakeAnchor(2, "mailto:a@b.com"),
		newFakeAnchor(3, "https://www.mysite.com/x"),
		newFakeAnchor(4, "http://[::1"),
		newFakeAnchor(5, "https://other.org/page"),
	}
	anchors[4].attrs["rel"] = "author"
	anchors[4].attrs["target"] = "_self"

	doc := newFakeDocument(anchors)
	p := New(doc, &manualScheduler{}, testBootstrap(), WithLogger(discard))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, a := range anchors[:4] {
		if a.sets != 0 {
			t.Errorf("anchor %q was modified", a.attrs["href"])
		}
	}
	ext := anchors[4]
	if ext.attrs["target"] != "_self" {
		t.Errorf("target = %q, want _self", ext.attrs["target"])
	}
	if ext.attrs["rel"] != "author nofollow noopener" {
		t.Errorf("rel = %q", ext.attrs["rel"])
	}
	if ext.attrs["class"] != model.ExternalLinkClass {
		t.Errorf("class = %q", ext.attrs["class"])
	}
}

func TestIconInsertion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		position model.IconPosition
		want     string
	}{
		{position: model.IconAfter, want: "beforeend: <i></i>"},
		{position: model.IconBefore, want: "afterbegin:<i></i> "},
	}

	for _, tt := range tests {
		t.Run(string(tt.position), func(t *testing.T) {
			t.Parallel()

			cfg := model.DefaultLinkConfiguration()
			cfg.IconPosition = tt.position
			boot := model.NewBootstrap(model.NewSiteIdentity("mysite.com", "https"), &cfg)

			a := newFakeAnchor(1, "https://other.org")
			p := New(newFakeDocument([]*fakeAnchor{a}), &manualScheduler{}, boot,
				WithLogger(discard), WithIconRenderer(fixedIcon("<i></i>")))
			if err := p.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			if len(a.inserts) != 1 || a.inserts[0] != tt.want {
				t.Errorf("inserts = %q, want [%q]", a.inserts, tt.want)
			}
		})
	}
}

type fixedIcon string

func (f fixedIcon) Render(model.IconType, string, string, string) string { return string(f) }

func TestLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("stop cancels pending rescan", func(t *testing.T) {
		t.Parallel()

		doc := newFakeDocument(externalAnchors(2, 1))
		sched := &manualScheduler{}
		p := New(doc, sched, testBootstrap(), WithLogger(discard))
		if err := p.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		doc.add(newFakeAnchor(10, "https://late.example/"))
		sched.flush()
		p.Stop()
		sched.advance(time.Second)

		if !doc.unsubscribed {
			t.Error("observer not unsubscribed")
		}
		if got := p.Stats().Scans; got != 1 {
			t.Errorf("Scans = %d, want 1", got)
		}
		if p.Running() {
			t.Error("Running() = true after Stop")
		}
		p.Stop()
	})

	t.Run("stop halts remaining batches", func(t *testing.T) {
		t.Parallel()

		doc := newFakeDocument(externalAnchors(100, 1))
		sched := &manualScheduler{}
		p := New(doc, sched, testBootstrap(), WithLogger(discard))
		if err := p.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		p.Stop()
		sched.drainFrames()

		if got := p.Stats().Processed; got != DefaultBatchSize {
			t.Errorf("Processed = %d, want %d", got, DefaultBatchSize)
		}
	})

	t.Run("start twice", func(t *testing.T) {
		t.Parallel()

		p := New(newFakeDocument(nil), &manualScheduler{}, testBootstrap(), WithLogger(discard))
		if err := p.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := p.Start(); !errors.Is(err, ErrAlreadyStarted) {
			t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
		}
		p.Stop()
		if err := p.Start(); !errors.Is(err, ErrStopped) {
			t.Errorf("Start() after Stop error = %v, want %v", err, ErrStopped)
		}
	})

	t.Run("observation unsupported", func(t *testing.T) {
		t.Parallel()

		doc := newFakeDocument(externalAnchors(2, 1))
		doc.observeErr = dom.ErrObservationUnsupported
		p := New(doc, &manualScheduler{}, testBootstrap(), WithLogger(discard))
		if err := p.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got := p.Stats().Annotated; got != 2 {
			t.Errorf("Annotated = %d, want 2", got)
		}
	})

	t.Run("explicit observer", func(t *testing.T) {
		t.Parallel()

		doc := newFakeDocument(externalAnchors(1, 1))
		p := New(doc, &manualScheduler{}, testBootstrap(), WithLogger(discard), WithObserver(dom.Unobservable{}))
		if err := p.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if doc.callback != nil {
			t.Error("document observed despite explicit observer")
		}
	})
}

func TestHTMLDocumentEndToEnd(t *testing.T) {
	t.Parallel()

	doc, err := dom.ParseString(`<html><body><main>
<a href="https://other.org/page">Link</a>
<a href="/about">About</a>
<a href="https://partner.com" class="btn">Partner</a>
</main></body></html>`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	cfg := model.DefaultLinkConfiguration()
	cfg.ExcludeDomains = []string{"partner.com"}
	boot := model.NewBootstrap(model.NewSiteIdentity("mysite.com", "https"), &cfg)
	sched := &manualScheduler{}
	p := New(doc, sched, boot, WithLogger(discard), WithIconRenderer(fixedIcon(`<span class="selm-external-icon"></span>`)))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := doc.AppendHTML("main", `<p><a href="https://late.org">Late</a></p>`); err != nil {
		t.Fatalf("AppendHTML() error = %v", err)
	}
	sched.advance(DefaultDebounce)

	out, err := doc.HTML()
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{
		`<a href="https://other.org/page" target="_blank" rel="nofollow noopener" class="selm-external-link">Link <span class="selm-external-icon"></span></a>`,
		`<a href="/about">About</a>`,
		`<a href="https://partner.com" class="btn">Partner</a>`,
		`<a href="https://late.org" target="_blank" rel="nofollow noopener" class="selm-external-link">Late <span class="selm-external-icon"></span></a>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("document missing %s\n%s", want, out)
		}
	}
	if got := p.Stats(); got.Scans != 2 || got.Annotated != 2 {
		t.Errorf("Stats() = %+v", got)
	}
}
