package watcher

import (
	"context"
	"log/slog"
	"time"
)

// BatchFunc handles one debounced batch, typically by running an
// incremental reindex.
type BatchFunc func(ctx context.Context, batch []FileEvent) error

// Run calls fn for every batch of w until ctx is cancelled or w stops.
// Failures of fn and watcher errors are logged and do not end the loop:
// the next batch retries the same reindex.
func Run(ctx context.Context, w Watcher, fn BatchFunc) error {
	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			start := time.Now()
			if err := fn(ctx, batch); err != nil {
				slog.Error("watch_batch_failed",
					slog.Int("events", len(batch)),
					slog.String("error", err.Error()))
				continue
			}
			slog.Info("watch_batch_done",
				slog.Int("events", len(batch)),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		case err, ok := <-errs:
			if !ok {
				// Keep draining events until that channel closes too.
				errs = nil
				continue
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}
