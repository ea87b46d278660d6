package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")

	if got := DefaultLogPath(); got != "/var/state/grampsindex/grampsindex.log" {
		t.Errorf("DefaultLogPath() = %s", got)
	}
}

func TestServerConfig_NeverWritesToStderr(t *testing.T) {
	cfg := ServerConfig("debug")

	if cfg.WriteToStderr {
		t.Error("server mode must keep stderr clean")
	}
	if cfg.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Level)
	}
}

func TestSetup_WritesJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 3})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("reindex_started", "tree", "smith")
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(out, `"msg":"reindex_started"`) || !strings.Contains(out, `"tree":"smith"`) {
		t.Errorf("unexpected log content: %s", out)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"INFO":    "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		if got := LevelFromString(in).String(); got != want {
			t.Errorf("LevelFromString(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	if _, err := FindLogFile(""); err == nil {
		t.Error("expected error without a log file")
	}
	if _, err := FindLogFile("/nonexistent/x.log"); err == nil {
		t.Error("expected error for a missing explicit file")
	}

	path := filepath.Join(t.TempDir(), "x.log")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := FindLogFile(path)
	if err != nil || got != path {
		t.Errorf("FindLogFile(%s) = %s, %v", path, got, err)
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grampsindex.log")
	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()
	w.maxSize = 100

	line := strings.Repeat("x", 60) + "\n"
	for i := 0; i < 5; i++ {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("rotated files beyond MaxFiles must be removed")
	}
}

func TestRotatingWriter_ReopensAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grampsindex.log")
	w, err := NewRotatingWriter(path, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := w.Write([]byte("late\n")); err != nil {
		t.Errorf("write after close: %v", err)
	}
	_ = w.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "late\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grampsindex.log")
	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	w.SetSyncEach(false)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = fmt.Fprintf(w, "g%d-%d\n", g, i)
			}
		}(g)
	}
	wg.Wait()
	_ = w.Close()

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != 400 {
		t.Errorf("expected 400 lines, got %d", n)
	}
}

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"indexer_opened","tree":"smith"}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"reindex_started","tree":"smith","mode":"full"}
not json
{"time":"2026-03-01T10:00:02.000Z","level":"ERROR","msg":"reindex_failed","tree":"jones","done":3}
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grampsindex.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t)

	tests := []struct {
		name string
		cfg  ViewerConfig
		n    int
		want []string
	}{
		{"all", ViewerConfig{}, 10, []string{"indexer_opened", "reindex_started", "", "reindex_failed"}},
		{"last two", ViewerConfig{}, 2, []string{"", "reindex_failed"}},
		{"info and above", ViewerConfig{Level: "info"}, 10, []string{"reindex_started", "", "reindex_failed"}},
		{"tree", ViewerConfig{Tree: "smith"}, 10, []string{"indexer_opened", "reindex_started"}},
		{"pattern", ViewerConfig{Pattern: regexp.MustCompile(`"mode"`)}, 10, []string{"reindex_started"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewViewer(tt.cfg, nil).Tail(path, tt.n)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Msg)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, nil)
	e := parseLine(`{"time":"2026-03-01T10:00:01.5Z","level":"INFO","msg":"reindex_started","tree":"smith","mode":"full"}`)

	got := v.FormatEntry(e)

	if got != "10:00:01.500 INFO  reindex_started mode=full tree=smith" {
		t.Errorf("FormatEntry() = %q", got)
	}
	if raw := v.FormatEntry(parseLine("plain text")); raw != "plain text" {
		t.Errorf("invalid lines are printed raw, got %q", raw)
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t)
	v := NewViewer(ViewerConfig{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(200 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"level":"INFO","msg":"reindex_complete"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "reindex_complete" {
			t.Errorf("unexpected entry %q", e.Msg)
		}
	case <-ctx.Done():
		t.Fatal("no entry followed")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}
