package core

import "testing"

func TestStatusTextNotifiesSubscribers(t *testing.T) {
	var s StatusText
	var got []string
	s.Subscribe(func(msg string) { got = append(got, msg) })

	s.SetStatus(StatusBusy)
	s.SetStatus("")

	if s.Text() != "" {
		t.Fatalf("Text = %q, want empty", s.Text())
	}
	if len(got) != 2 || got[0] != StatusBusy || got[1] != "" {
		t.Fatalf("notifications = %q", got)
	}
}

func TestStatusFunc(t *testing.T) {
	var last string
	var sink StatusSink = StatusFunc(func(msg string) { last = msg })
	sink.SetStatus("hello")
	if last != "hello" {
		t.Fatalf("last = %q", last)
	}
}
