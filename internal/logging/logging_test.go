package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWithRunLoggerAnnotatesRecords(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithHandler(slog.NewJSONHandler(&buf, nil))

	id := NewRunID()
	ctx, log := WithRunLogger(context.Background(), base, id)
	if got := RunIDFromContext(ctx); got != id {
		t.Fatalf("RunIDFromContext = %q, want %q", got, id)
	}

	log.Info(ctx, "tick", Int("index", 60), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v (%s)", err, buf.String())
	}
	if rec["run_id"] != id {
		t.Fatalf("run_id = %v, want %s", rec["run_id"], id)
	}
	if rec["index"] != float64(60) {
		t.Fatalf("index = %v, want 60", rec["index"])
	}
	if rec["error"] != "boom" {
		t.Fatalf("error = %v, want boom", rec["error"])
	}
}

func TestNewRunIDUnique(t *testing.T) {
	if a, b := NewRunID(), NewRunID(); a == b || a == "" {
		t.Fatalf("expected distinct non-empty run ids, got %q and %q", a, b)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in).Level(); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satmap.log")
	log := New(Config{Level: "debug", Format: "json", File: path})
	log.Debug(context.Background(), "base map drawn", String("features", "177"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "base map drawn") {
		t.Fatalf("log file missing record: %s", data)
	}
}

func TestLoggerFromContextFallsBackToNoop(t *testing.T) {
	if _, ok := LoggerFromContext(context.Background()).(noopLogger); !ok {
		t.Fatal("expected noop logger when none stored")
	}
	l := Noop()
	ctx := ContextWithLogger(context.Background(), l)
	if LoggerFromContext(ctx) != l {
		t.Fatal("expected stored logger")
	}
}
