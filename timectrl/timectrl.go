package timectrl

import (
	"sync"
	"time"
)

// Clock is the wall-clock abstraction used by animation loops. Tests swap
// in a FakeClock so that elapsed time is deterministic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Task is a handle to a recurring callback registered with a Scheduler.
type Task interface {
	// Stop cancels the task. After Stop returns no new invocation of the
	// callback starts; an invocation already in progress runs to completion.
	// Stop is idempotent and may be called from inside the callback.
	Stop()
	// Done is closed once the task has been stopped and no invocation is
	// in progress.
	Done() <-chan struct{}
}

// Scheduler fires callbacks at a fixed interval. Invocations of a single
// task never overlap.
type Scheduler interface {
	Every(interval time.Duration, fn func(now time.Time)) Task
}

// Scaled maps a wall-clock delta onto simulated time: the returned instant
// is start advanced by elapsed multiplied by factor.
func Scaled(start time.Time, elapsed time.Duration, factor float64) time.Time {
	return start.Add(time.Duration(float64(elapsed) * factor))
}

// IntervalScheduler is the real Scheduler. Each task owns one goroutine
// driven by a time.Ticker.
type IntervalScheduler struct{}

// NewIntervalScheduler constructs a scheduler backed by time.Ticker.
func NewIntervalScheduler() *IntervalScheduler {
	return &IntervalScheduler{}
}

// Every starts a goroutine that calls fn once per interval until the
// returned task is stopped. The first call happens one interval after Every
// returns.
func (s *IntervalScheduler) Every(interval time.Duration, fn func(time.Time)) Task {
	if interval <= 0 {
		interval = time.Second
	}
	t := &tickerTask{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(interval, fn)
	return t
}

type tickerTask struct {
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func (t *tickerTask) run(interval time.Duration, fn func(time.Time)) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case now := <-ticker.C:
			// A stop racing with the tick wins.
			select {
			case <-t.quit:
				return
			default:
			}
			fn(now)
		}
	}
}

func (t *tickerTask) Stop() {
	t.stopOnce.Do(func() { close(t.quit) })
}

func (t *tickerTask) Done() <-chan struct{} { return t.done }
