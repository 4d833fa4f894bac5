package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want=%v", in, got, want)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn := New(Config{Level: "info", Dir: dir, Service: "test"})
	logger.Info("hello", "k", "v")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %v err=%v", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("file log missing entry: %s", data)
	}
	if !strings.Contains(string(data), `"service":"test"`) {
		t.Fatalf("file log missing service attr: %s", data)
	}
}

func TestNewWithoutDirStillLogs(t *testing.T) {
	logger, closeFn := New(Config{})
	defer closeFn()
	if logger == nil {
		t.Fatal("nil logger")
	}
	logger.Debug("suppressed at default level")
}
