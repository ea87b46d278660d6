package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per update; used for pipes and CI.
// Updates are throttled to one line per job and percent.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	percent map[string]int
}

func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, percent: make(map[string]int)}
}

func (r *PlainRenderer) Start(context.Context) error { return nil }

// UpdateProgress prints "[INDEX] job 10/100 - message".
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Total > 0 {
		pct := event.Current * 100 / event.Total
		if last, seen := r.percent[event.Job]; seen && last == pct && event.Current != event.Total {
			return
		}
		r.percent[event.Job] = pct
		_, _ = fmt.Fprintf(r.out, "[%s] %s %d/%d", event.Stage.Icon(), event.Job, event.Current, event.Total)
		if event.Message != "" {
			_, _ = fmt.Fprintf(r.out, " - %s", event.Message)
		}
		_, _ = fmt.Fprintln(r.out)
		return
	}
	if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s %s\n", event.Stage.Icon(), event.Job, event.Message)
	}
}

func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Job != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Job, event.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete prints one summary line per job.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d jobs in %s", len(stats.Jobs), stats.Duration.Round(100*time.Millisecond))
	if n := stats.Failed(); n > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", n)
	}
	if stats.JobID != "" {
		_, _ = fmt.Fprintf(r.out, " [%s]", stats.JobID)
	}
	_, _ = fmt.Fprintln(r.out)
	for _, j := range stats.Jobs {
		_, _ = fmt.Fprintf(r.out, "  %s\n", jobSummary(j))
	}
	if stats.Embedder.Model != "" {
		_, _ = fmt.Fprintf(r.out, "Embedding model: %s (%d dims)\n", stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

func (r *PlainRenderer) Stop() error { return nil }

func jobSummary(j JobStats) string {
	var s string
	switch j.Mode {
	case "incremental":
		s = fmt.Sprintf("%s: %d added, %d updated, %d deleted", j.Job, j.Added, j.Updated, j.Deleted)
	default:
		s = fmt.Sprintf("%s: %d objects", j.Job, j.Objects)
	}
	s += fmt.Sprintf(" in %s", j.Duration.Round(100*time.Millisecond))
	if j.Err != nil {
		s += fmt.Sprintf(" FAILED: %v", j.Err)
	}
	return s
}

var _ Renderer = (*PlainRenderer)(nil)
