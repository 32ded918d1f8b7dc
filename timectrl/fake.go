package timectrl

import (
	"sync"
	"time"
)

// FakeClock is a manually driven Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakeScheduler is a test-only Scheduler. Nothing fires on its own; tests
// call Advance to move the shared FakeClock and fire every due tick
// synchronously on the calling goroutine.
type FakeScheduler struct {
	Clock *FakeClock

	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	interval time.Duration
	next     time.Time
	fn       func(time.Time)

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewFakeScheduler creates a scheduler driven by clock.
func NewFakeScheduler(clock *FakeClock) *FakeScheduler {
	return &FakeScheduler{Clock: clock}
}

// Every registers fn; the first tick is due one interval from the clock's
// current time.
func (s *FakeScheduler) Every(interval time.Duration, fn func(time.Time)) Task {
	if interval <= 0 {
		interval = time.Second
	}
	t := &fakeTask{
		interval: interval,
		next:     s.Clock.Now().Add(interval),
		fn:       fn,
		done:     make(chan struct{}),
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t
}

// Advance moves the clock forward by d, firing due ticks in time order.
// It returns the number of callbacks invoked.
func (s *FakeScheduler) Advance(d time.Duration) int {
	target := s.Clock.Now().Add(d)
	fired := 0
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		s.Clock.Set(t.next)
		at := t.next
		t.next = t.next.Add(t.interval)
		if t.isStopped() {
			continue
		}
		t.fn(at)
		fired++
	}
	s.Clock.Set(target)
	return fired
}

// Tick advances the clock by exactly one interval of the earliest live task
// and fires it. It returns false when no task is live.
func (s *FakeScheduler) Tick() bool {
	t := s.nextDue(time.Time{})
	if t == nil {
		return false
	}
	return s.Advance(t.next.Sub(s.Clock.Now())) > 0
}

// Active returns the number of tasks that have not been stopped.
func (s *FakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// nextDue returns the live task with the earliest next tick not after
// limit. A zero limit means no limit.
func (s *FakeScheduler) nextDue(limit time.Time) *fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *fakeTask
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if t.isStopped() {
			continue
		}
		live = append(live, t)
		if !limit.IsZero() && t.next.After(limit) {
			continue
		}
		if best == nil || t.next.Before(best.next) {
			best = t
		}
	}
	s.tasks = live
	return best
}

func (t *fakeTask) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.done)
	}
}

func (t *fakeTask) Done() <-chan struct{} { return t.done }
