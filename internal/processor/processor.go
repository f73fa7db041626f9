package processor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/linkmark/internal/annotator"
	"github.com/nao1215/linkmark/internal/classifier"
	"github.com/nao1215/linkmark/internal/dom"
	"github.com/nao1215/linkmark/internal/eventloop"
	"github.com/nao1215/linkmark/internal/icon"
	"github.com/nao1215/linkmark/internal/model"
)

const (
	// DefaultBatchSize is the number of anchors handled per frame.
	DefaultBatchSize = 50

	// DefaultDebounce is the quiet period before a mutation triggered rescan.
	DefaultDebounce = 100 * time.Millisecond
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("processor already started")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("processor stopped")
)

// Scheduler is the cooperative task queue a Processor runs on.
type Scheduler interface {
	// Post runs task soon, after the current task returns.
	Post(task func())
	// NextFrame runs task at the next frame boundary.
	NextFrame(task func())
	// AfterFunc runs task after d unless the returned Timer is stopped.
	AfterFunc(d time.Duration, task func()) eventloop.Timer
}

// Pass describes one completed scan of the document.
type Pass struct {
	// RunID identifies the Processor.
	RunID string
	// Scan is the 1-based scan sequence number; 1 is the initial pass.
	Scan int
	// Anchors is the number of a[href] elements found by the scan.
	Anchors int
	// Processed is the number of anchors newly processed by this scan.
	Processed int
	// Annotated is the number of anchors annotated by this scan.
	Annotated int
	// Batches is the number of batches the scan was split into.
	Batches int
}

// Stats are cumulative counters for a Processor.
type Stats struct {
	Scans     int64 `json:"scans"`
	Processed int64 `json:"processed"`
	Annotated int64 `json:"annotated"`
	Failures  int64 `json:"failures"`
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Processor annotates external anchors in a live document.
//
// Design decision: Start, Stop and every scan run on the Scheduler's
// goroutine, so the processed set and the pending debounce timer need no
// locking. Only the counters behind Stats are read from other goroutines,
// and they are atomics.
type Processor struct {
	id         string
	doc        dom.Document
	observer   dom.Observer
	sched      Scheduler
	classifier *classifier.Classifier
	annotator  *annotator.Annotator
	logger     *slog.Logger
	batchSize  int
	debounce   time.Duration
	onPass     func(Pass)

	// Owned by the scheduler goroutine.
	state       state
	processed   map[dom.NodeKey]struct{}
	pending     eventloop.Timer
	unsubscribe func()
	scans       int

	scanCount      atomic.Int64
	processedCount atomic.Int64
	annotatedCount atomic.Int64
	failureCount   atomic.Int64
}

type options struct {
	observer  dom.Observer
	renderer  annotator.IconRenderer
	logger    *slog.Logger
	batchSize int
	debounce  time.Duration
	onPass    func(Pass)
}

// Option configures a Processor.
type Option func(*options)

// WithObserver sets the mutation observer. When unset and the document
// implements dom.Observer, the document itself is observed.
func WithObserver(o dom.Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithIconRenderer replaces the bundled icon renderer. nil disables icons.
func WithIconRenderer(r annotator.IconRenderer) Option {
	return func(opts *options) {
		opts.renderer = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithBatchSize sets the number of anchors processed per frame.
func WithBatchSize(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.batchSize = n
		}
	}
}

// WithDebounce sets the rescan debounce window.
func WithDebounce(d time.Duration) Option {
	return func(opts *options) {
		if d > 0 {
			opts.debounce = d
		}
	}
}

// WithPassCompleteHook registers fn to run on the scheduler goroutine after
// every scan has processed its last batch.
func WithPassCompleteHook(fn func(Pass)) Option {
	return func(opts *options) {
		opts.onPass = fn
	}
}

// New creates a Processor for doc using the site identity and link
// configuration carried by boot.
func New(doc dom.Document, sched Scheduler, boot model.Bootstrap, opts ...Option) *Processor {
	o := &options{
		renderer:  icon.New(),
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.observer == nil {
		if obs, ok := doc.(dom.Observer); ok {
			o.observer = obs
		} else {
			o.observer = dom.Unobservable{}
		}
	}

	cfg := boot.LinkConfig()
	id := uuid.NewString()
	return &Processor{
		id:         id,
		doc:        doc,
		observer:   o.observer,
		sched:      sched,
		classifier: classifier.New(boot.Site(), cfg),
		annotator:  annotator.New(cfg, o.renderer),
		logger:     o.logger.With("run_id", id),
		batchSize:  o.batchSize,
		debounce:   o.debounce,
		onPass:     o.onPass,
		processed:  make(map[dom.NodeKey]struct{}),
	}
}

// ID returns the run identifier attached to logs and passes.
func (p *Processor) ID() string {
	return p.id
}

// Start subscribes to mutations and runs the initial pass. Observation
// failures degrade to the initial pass only and are not returned.
func (p *Processor) Start() error {
	switch p.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}
	p.state = stateRunning

	stop, err := p.observer.Observe(p.onAdded)
	switch {
	case errors.Is(err, dom.ErrObservationUnsupported):
		p.logger.Info("mutation observation unavailable, running initial pass only")
	case err != nil:
		p.logger.Warn("failed to observe mutations, running initial pass only", "error", err)
	default:
		p.unsubscribe = stop
	}

	p.scan()
	return nil
}

// Stop tears the processor down. It is safe to call more than once.
func (p *Processor) Stop() {
	if p.state == stateStopped {
		return
	}
	p.state = stateStopped

	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
	p.processed = nil
	p.logger.Debug("processor stopped", "stats", p.Stats())
}

// Running reports whether Start succeeded and Stop has not been called.
func (p *Processor) Running() bool {
	return p.state == stateRunning
}

// Stats returns the cumulative counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Scans:     p.scanCount.Load(),
		Processed: p.processedCount.Load(),
		Annotated: p.annotatedCount.Load(),
		Failures:  p.failureCount.Load(),
	}
}

// onAdded runs on the observer's goroutine.
func (p *Processor) onAdded(nodes []dom.AddedNode) {
	for _, n := range nodes {
		if n.HasAnchor() {
			p.sched.Post(p.scheduleRescan)
			return
		}
	}
}

func (p *Processor) scheduleRescan() {
	if p.state != stateRunning {
		return
	}
	if p.pending != nil {
		p.pending.Stop()
	}

	var timer eventloop.Timer
	timer = p.sched.AfterFunc(p.debounce, func() {
		if p.pending == timer {
			p.pending = nil
		}
		p.scan()
	})
	p.pending = timer
}

func (p *Processor) scan() {
	if p.state != stateRunning {
		return
	}

	p.scans++
	p.scanCount.Add(1)
	pass := &Pass{RunID: p.id, Scan: p.scans}

	anchors, err := p.doc.Anchors()
	if err != nil {
		p.logger.Warn("failed to enumerate anchors", "scan", pass.Scan, "error", err)
		return
	}
	pass.Anchors = len(anchors)

	todo := anchors[:0:0]
	for _, a := range anchors {
		if _, seen := p.processed[a.Key()]; !seen {
			todo = append(todo, a)
		}
	}
	p.logger.Debug("scan started", "scan", pass.Scan, "anchors", len(anchors), "new", len(todo))

	p.runBatch(todo, pass)
}

// runBatch processes the first batchSize anchors of todo and defers the rest
// to the next frame.
func (p *Processor) runBatch(todo []dom.Anchor, pass *Pass) {
	if p.state != stateRunning {
		return
	}

	n := min(p.batchSize, len(todo))
	pass.Batches++
	for _, a := range todo[:n] {
		p.processAnchor(a, pass)
	}

	rest := todo[n:]
	if len(rest) > 0 {
		p.sched.NextFrame(func() { p.runBatch(rest, pass) })
		return
	}

	p.logger.Debug("scan complete", "scan", pass.Scan, "processed", pass.Processed,
		"annotated", pass.Annotated, "batches", pass.Batches)
	if p.onPass != nil {
		p.onPass(*pass)
	}
}

func (p *Processor) processAnchor(a dom.Anchor, pass *Pass) {
	key := a.Key()
	if _, seen := p.processed[key]; seen {
		return
	}
	p.processed[key] = struct{}{}
	p.processedCount.Add(1)
	pass.Processed++

	annotated, err := p.annotate(a)
	if err != nil {
		p.failureCount.Add(1)
		p.logger.Debug("failed to annotate anchor", "key", key, "error", err)
		return
	}
	if annotated {
		p.annotatedCount.Add(1)
		pass.Annotated++
	}
}

func (p *Processor) annotate(a dom.Anchor) (annotated bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while annotating: %v", r)
		}
	}()

	rec := record(a)
	if p.classifier.Classify(rec.Href, rec.Class) != model.External {
		return false, nil
	}

	delta := p.annotator.Annotate(rec)
	if delta.SetTarget {
		if err := a.SetAttr("target", delta.Target); err != nil {
			return false, fmt.Errorf("failed to set target: %w", err)
		}
	}
	if delta.RelChanged {
		if err := a.SetAttr("rel", strings.Join(delta.Rel, " ")); err != nil {
			return false, fmt.Errorf("failed to set rel: %w", err)
		}
	}
	if delta.ClassChanged {
		if err := a.SetAttr("class", strings.Join(delta.Class, " ")); err != nil {
			return false, fmt.Errorf("failed to set class: %w", err)
		}
	}
	if delta.Icon != nil {
		pos, markup := dom.BeforeEnd, " "+delta.Icon.Markup
		if delta.Icon.Position == model.IconBefore {
			pos, markup = dom.AfterBegin, delta.Icon.Markup+" "
		}
		if err := a.InsertHTML(pos, markup); err != nil {
			return false, fmt.Errorf("failed to insert icon: %w", err)
		}
	}
	return true, nil
}

func record(a dom.Anchor) model.AnchorRecord {
	href, _ := a.Attr("href")
	rel, _ := a.Attr("rel")
	class, _ := a.Attr("class")
	target, hasTarget := a.Attr("target")
	return model.AnchorRecord{
		Href:      href,
		Rel:       strings.Fields(rel),
		Class:     strings.Fields(class),
		Target:    target,
		HasTarget: hasTarget,
		HasIcon:   a.HasDescendant(model.IconClass),
	}
}
