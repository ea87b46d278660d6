package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"
)

// PollingWatcher detects changes by comparing the size and modification
// time of a fixed set of files on every tick.
type PollingWatcher struct {
	interval time.Duration
	files    []string
	state    map[string]fileSnapshot
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		state:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start polls the files of the database at dbPath until Stop is called
// or ctx is cancelled.
func (p *PollingWatcher) Start(ctx context.Context, dbPath string) error {
	files, err := DatabaseFiles(dbPath)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}

	p.mu.Lock()
	p.files = files
	if err := p.snapshot(p.state); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("initial scan: %w", err)
	}
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				p.mu.Lock()
				if !p.stopped {
					select {
					case p.errors <- err:
					default:
					}
				}
				p.mu.Unlock()
			}
		}
	}
}

// snapshot records the state of every existing file into dst.
func (p *PollingWatcher) snapshot(dst map[string]fileSnapshot) error {
	for _, f := range p.files {
		info, err := os.Stat(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		dst[f] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return nil
}

func (p *PollingWatcher) detectChanges() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fileSnapshot, len(p.files))
	if err := p.snapshot(current); err != nil {
		return fmt.Errorf("stat database files: %w", err)
	}

	now := time.Now()
	for _, f := range p.files {
		prev, had := p.state[f]
		cur, has := current[f]
		switch {
		case has && !had:
			p.emit(FileEvent{Path: f, Operation: OpCreate, Timestamp: now})
		case had && !has:
			p.emit(FileEvent{Path: f, Operation: OpDelete, Timestamp: now})
		case has && (prev.modTime != cur.modTime || prev.size != cur.size):
			p.emit(FileEvent{Path: f, Operation: OpModify, Timestamp: now})
		}
	}
	p.state = current
	return nil
}

// emit must be called with p.mu held.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling_buffer_full",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of single file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
