// Package ui renders reindex progress and index status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is the phase of one reindex job.
type Stage int

const (
	// StagePreparing covers opening the database and reading inventories.
	StagePreparing Stage = iota
	// StageIndexing covers writing documents.
	StageIndexing
	// StageComplete means the job finished, successfully or not.
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StagePreparing:
		return "Preparing"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon is the stage tag used by plain output.
func (s Stage) Icon() string {
	switch s {
	case StagePreparing:
		return "PREP"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent reports progress of one job, e.g. "mytree/keyword".
type ProgressEvent struct {
	Job     string
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent reports a failed job or a warning.
type ErrorEvent struct {
	Job    string
	Err    error
	IsWarn bool
}

// JobStats summarises one finished job.
type JobStats struct {
	Job      string
	Mode     string
	Objects  int
	Deleted  int
	Added    int
	Updated  int
	Duration time.Duration
	Err      error
}

// EmbedderInfo describes the embedding model of semantic jobs.
type EmbedderInfo struct {
	Model      string
	Dimensions int
}

// CompletionStats summarises a reindex run.
type CompletionStats struct {
	JobID    string
	Jobs     []JobStats
	Duration time.Duration
	Embedder EmbedderInfo
}

// Failed counts jobs that ended with an error.
func (s CompletionStats) Failed() int {
	n := 0
	for _, j := range s.Jobs {
		if j.Err != nil {
			n++
		}
	}
	return n
}

// Renderer displays progress of concurrent jobs. Implementations are
// safe for concurrent use.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header.
	Title string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, Title: "Gramps search index"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the TUI renderer on interactive terminals and the
// plain renderer for pipes, CI and --plain.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks the NO_COLOR convention.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI checks for common CI environment variables.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
