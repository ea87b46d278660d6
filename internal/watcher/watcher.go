package watcher

import (
	"context"
	"path/filepath"
	"time"
)

// Operation is the kind of change seen on a watched file.
type Operation int

const (
	// OpCreate means the file appeared.
	OpCreate Operation = iota
	// OpModify means the file was written.
	OpModify
	// OpDelete means the file was removed.
	OpDelete
	// OpRename means the file was moved away, which SQLite does not do
	// but backup tools and Gramps' own import sometimes do.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change of a database file.
type FileEvent struct {
	// Path is the absolute path of the changed file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Watcher reports batches of database file changes.
type Watcher interface {
	// Start watches the database file at dbPath and blocks until Stop
	// is called or ctx is cancelled.
	Start(ctx context.Context, dbPath string) error

	// Stop releases resources and closes both channels. Safe to call
	// multiple times.
	Stop() error

	// Events delivers debounced batches.
	Events() <-chan []FileEvent

	// Errors delivers non-fatal errors; the watcher keeps running.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is how long the files must stay quiet before a
	// batch is emitted. Gramps commits one transaction per edit, and an
	// editing session produces bursts of them.
	// Default: 2s
	DebounceWindow time.Duration

	// PollInterval is the interval of the polling fallback.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  2 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// companionSuffixes are the files SQLite writes next to a database.
// The shared-memory index (-shm) is left out: readers touch it too, so
// the reindex itself would keep the watcher busy.
var companionSuffixes = []string{"", "-wal", "-journal"}

// DatabaseFiles returns the absolute paths of the database file and
// its write-ahead log and rollback journal.
func DatabaseFiles(dbPath string) ([]string, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(companionSuffixes))
	for i, s := range companionSuffixes {
		files[i] = abs + s
	}
	return files, nil
}
