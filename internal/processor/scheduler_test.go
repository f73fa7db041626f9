package processor

import (
	"sort"
	"time"

	"github.com/nao1215/linkmark/internal/eventloop"
)

// manualScheduler runs tasks only when the test advances it, on virtual time.
type manualScheduler struct {
	now    time.Duration
	tasks  []func()
	frames []func()
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	task    func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) Post(task func()) {
	s.tasks = append(s.tasks, task)
}

func (s *manualScheduler) NextFrame(task func()) {
	s.frames = append(s.frames, task)
}

func (s *manualScheduler) AfterFunc(d time.Duration, task func()) eventloop.Timer {
	t := &manualTimer{at: s.now + d, task: task}
	s.timers = append(s.timers, t)
	return t
}

// flush runs posted tasks until none are left.
func (s *manualScheduler) flush() {
	for len(s.tasks) > 0 {
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		task()
	}
}

// frame runs the tasks queued for the current frame.
func (s *manualScheduler) frame() {
	frames := s.frames
	s.frames = nil
	for _, task := range frames {
		task()
	}
	s.flush()
}

// drainFrames runs frames until none are queued and returns how many ran.
func (s *manualScheduler) drainFrames() int {
	n := 0
	for len(s.frames) > 0 {
		s.frame()
		n++
	}
	return n
}

// advance runs posted tasks, then moves virtual time forward and fires due
// timers in order.
func (s *manualScheduler) advance(d time.Duration) {
	s.flush()
	s.now += d

	sort.SliceStable(s.timers, func(i, j int) bool { return s.timers[i].at < s.timers[j].at })
	var keep []*manualTimer
	var due []*manualTimer
	for _, t := range s.timers {
		switch {
		case t.stopped:
		case t.at <= s.now:
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	s.timers = keep

	for _, t := range due {
		if t.stopped {
			continue
		}
		t.fired = true
		t.task()
		s.flush()
	}
}

func (s *manualScheduler) pendingTimers() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
