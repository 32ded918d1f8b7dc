package core

import "sync"

// StatusBusy is shown while a run request waits on an active run.
const StatusBusy = "Please wait..."

// StatusSink receives the user-facing hint text. An empty string clears it.
type StatusSink interface {
	SetStatus(msg string)
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(string)

func (f StatusFunc) SetStatus(msg string) { f(msg) }

// StatusText is an in-memory StatusSink safe for concurrent use.
type StatusText struct {
	mu   sync.RWMutex
	text string
	subs []func(string)
}

func (s *StatusText) SetStatus(msg string) {
	s.mu.Lock()
	s.text = msg
	subs := append([]func(string){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

// Text returns the current status.
func (s *StatusText) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Subscribe registers fn for status changes.
func (s *StatusText) Subscribe(fn func(string)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

type discardStatus struct{}

func (discardStatus) SetStatus(string) {}
