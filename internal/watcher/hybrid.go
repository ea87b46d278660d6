package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches a database file with fsnotify and falls back to
// polling when fsnotify is unavailable for the file's directory.
type HybridWatcher struct {
	opts           Options
	fsWatcher      *fsnotify.Watcher
	pollWatcher    *PollingWatcher
	debouncer      *Debouncer
	files          map[string]bool
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

var _ Watcher = (*HybridWatcher)(nil)

// New creates a watcher. fsnotify is tried first unless
// opts.ForcePolling is set.
func New(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	h := &HybridWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		} else {
			h.fsWatcher = fsw
		}
	}
	return h, nil
}

// Start watches the database at dbPath. It blocks until Stop is called
// or ctx is cancelled.
func (h *HybridWatcher) Start(ctx context.Context, dbPath string) error {
	files, err := DatabaseFiles(dbPath)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.files = make(map[string]bool, len(files))
	for _, f := range files {
		h.files[f] = true
	}
	if h.fsWatcher != nil {
		// Watching the directory keeps working when SQLite deletes and
		// recreates the journal files.
		if err := h.fsWatcher.Add(filepath.Dir(files[0])); err != nil {
			slog.Warn("fsnotify_add_failed",
				slog.String("dir", filepath.Dir(files[0])),
				slog.String("error", err.Error()))
			_ = h.fsWatcher.Close()
			h.fsWatcher = nil
		}
	}
	if h.fsWatcher == nil {
		h.pollWatcher = NewPollingWatcher(h.opts.PollInterval)
	}
	fsw, poll := h.fsWatcher, h.pollWatcher
	h.mu.Unlock()

	slog.Info("watcher_started",
		slog.String("db", files[0]),
		slog.String("type", h.WatcherType()),
		slog.Duration("debounce", h.opts.DebounceWindow))

	go h.forwardDebounced(ctx)
	if fsw != nil {
		return h.runFsnotify(ctx, fsw)
	}
	go h.forwardPolled(ctx, poll)
	err = poll.Start(ctx, dbPath)
	if ctx.Err() != nil {
		_ = h.Stop()
	}
	return err
}

func (h *HybridWatcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !h.files[path] {
		return
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		// chmod
		return
	}
	h.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

func (h *HybridWatcher) forwardPolled(ctx context.Context, poll *PollingWatcher) {
	events, errs := poll.Events(), poll.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.debouncer.Add(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) forwardDebounced(ctx context.Context) {
	out := h.debouncer.Output()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case batch, ok := <-out:
			if !ok {
				return
			}
			h.emitEvents(batch)
		}
	}
}

func (h *HybridWatcher) emitEvents(batch []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.events <- batch:
	default:
		count := h.droppedBatches.Add(1)
		slog.Warn("watcher_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.errors <- err:
	default:
	}
}

// DroppedBatches returns how many batches were dropped on a full buffer.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.droppedBatches.Load()
}

// Stop stops the watcher and releases resources.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)
	h.debouncer.Stop()
	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}
	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// WatcherType returns "fsnotify" or "polling".
func (h *HybridWatcher) WatcherType() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}
