// Package watcher notices writes to a Gramps database file and turns
// them into debounced change batches.
//
// Gramps keeps a tree in a single SQLite file next to its write-ahead
// log and rollback journal. The watcher observes the directory holding
// the file with fsnotify and reports only events for these files. When
// fsnotify cannot be set up (network mounts, some container volumes)
// the files are polled instead.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, "/home/me/.gramps/grampsdb/abc/sqlite.db") }()
//	return watcher.Run(ctx, w, func(ctx context.Context, batch []watcher.FileEvent) error {
//	    _, err := ix.ReindexIncremental(ctx, nil)
//	    return err
//	})
package watcher
