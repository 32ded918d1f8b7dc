package timectrl

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScaled(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	got := Scaled(start, 2*time.Second, 60)
	if want := start.Add(2 * time.Minute); !got.Equal(want) {
		t.Fatalf("Scaled = %v, want %v", got, want)
	}
	if got := Scaled(start, 0, 60); !got.Equal(start) {
		t.Fatalf("Scaled with zero elapsed = %v, want %v", got, start)
	}
}

func TestIntervalSchedulerStops(t *testing.T) {
	s := NewIntervalScheduler()

	var calls atomic.Int32
	task := s.Every(5*time.Millisecond, func(time.Time) {
		calls.Add(1)
	})

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 ticks, got %d", calls.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}

	task.Stop()
	<-task.Done()
	after := calls.Load()

	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Fatalf("callback ran after Stop: %d -> %d", after, got)
	}

	// Stop is idempotent.
	task.Stop()
}

func TestIntervalSchedulerStopFromCallback(t *testing.T) {
	s := NewIntervalScheduler()

	var calls atomic.Int32
	var task Task
	ready := make(chan struct{})
	task = s.Every(2*time.Millisecond, func(time.Time) {
		<-ready
		calls.Add(1)
		task.Stop()
	})
	close(ready)

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not finish after stopping itself")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestFakeSchedulerAdvance(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	s := NewFakeScheduler(clock)

	var fired []time.Time
	task := s.Every(time.Second, func(now time.Time) {
		fired = append(fired, now)
	})

	if n := s.Advance(500 * time.Millisecond); n != 0 {
		t.Fatalf("Advance(500ms) fired %d ticks, want 0", n)
	}
	if n := s.Advance(3 * time.Second); n != 3 {
		t.Fatalf("Advance(3s) fired %d ticks, want 3", n)
	}
	for i, at := range fired {
		if want := start.Add(time.Duration(i+1) * time.Second); !at.Equal(want) {
			t.Fatalf("tick %d at %v, want %v", i, at, want)
		}
	}
	if got := clock.Now(); !got.Equal(start.Add(3500 * time.Millisecond)) {
		t.Fatalf("clock = %v after advancing", got)
	}

	task.Stop()
	select {
	case <-task.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
	if n := s.Advance(10 * time.Second); n != 0 {
		t.Fatalf("stopped task fired %d times", n)
	}
	if s.Active() != 0 {
		t.Fatalf("Active = %d, want 0", s.Active())
	}
}

func TestFakeSchedulerTick(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	s := NewFakeScheduler(clock)

	if s.Tick() {
		t.Fatalf("Tick with no tasks should report false")
	}

	count := 0
	var task Task
	task = s.Every(time.Second, func(time.Time) {
		count++
		if count == 2 {
			task.Stop()
		}
	})

	for s.Tick() {
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if got := clock.Now(); !got.Equal(time.Unix(2, 0)) {
		t.Fatalf("clock = %v, want 2s after epoch", got)
	}
}
