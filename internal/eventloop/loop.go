package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameInterval approximates one display refresh at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// ErrClosed is returned by Call once the loop has stopped running.
var ErrClosed = errors.New("event loop closed")

// Timer is a pending AfterFunc task.
type Timer interface {
	// Stop cancels the task. It returns false if the task already ran or
	// was already stopped.
	Stop() bool
}

// Loop runs tasks on one goroutine.
//
// Design decision: tasks queued with NextFrame wait for the next frame tick,
// mirroring a browser's requestAnimationFrame. Posted tasks and fired timers
// run between ticks, so a processor working through batches never starves
// them.
type Loop struct {
	frame  time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	queue      []func()
	frameQueue []func()
	closed     bool

	wake chan struct{}
	done chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithFrameInterval sets the NextFrame tick.
func WithFrameInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.frame = d
		}
	}
}

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loop. Tasks do not run until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		frame:  DefaultFrameInterval,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes tasks until ctx is cancelled. Queued tasks that have not run
// yet are discarded. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.frame)
	defer ticker.Stop()
	defer l.close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.drain()
		case <-ticker.C:
			l.runFrame()
		}
	}
}

// Post queues task to run on the loop. Tasks posted after the loop stopped
// are dropped.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// NextFrame queues task for the next frame tick.
func (l *Loop) NextFrame(task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.frameQueue = append(l.frameQueue, task)
}

// AfterFunc runs task on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, task func()) Timer {
	t := &timer{}
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.fired.CompareAndSwap(false, true) {
				task()
			}
		})
	})
	return t
}

// Call runs fn on the loop and waits for its result.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	l.Post(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			l.run(task)
		}
	}
}

func (l *Loop) runFrame() {
	l.mu.Lock()
	tasks := l.frameQueue
	l.frameQueue = nil
	l.mu.Unlock()

	for _, task := range tasks {
		l.run(task)
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.frameQueue = nil
	l.mu.Unlock()
	close(l.done)
}

type timer struct {
	t     *time.Timer
	fired atomic.Bool
}

func (t *timer) Stop() bool {
	t.t.Stop()
	return t.fired.CompareAndSwap(false, true)
}
