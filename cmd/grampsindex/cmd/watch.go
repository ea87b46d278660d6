package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gramps-project/grampsindex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		trees       []string
		metricsAddr string
		pollOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reindex trees whenever their Gramps database changes",
		Long: `Watch runs an incremental reindex of every tree, then follows writes
to the Gramps SQLite files and reindexes after watch.debounce of quiet.
With --metrics-addr the indexer metrics are served on /metrics.`,
		Example: `  grampsindex watch --tree smith --metrics-addr :9120`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), trees, metricsAddr, pollOnly)
		},
	}

	cmd.Flags().StringSliceVar(&trees, "tree", nil, "Tree to watch (repeatable; default all configured trees)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default watch.metrics_addr)")
	cmd.Flags().BoolVar(&pollOnly, "poll", false, "Poll file modification times instead of using file system events")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, flagTrees []string, metricsAddr string, pollOnly bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	trees, err := resolveTrees(cfg, flagTrees)
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Watch.MetricsAddr
	}
	e := openEnv(ctx, cfg)
	defer func() { _ = e.Close() }()
	if err := e.requireEmbedder(); err != nil {
		return err
	}

	for _, tree := range trees {
		if _, err := openerFor(cfg)(tree); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, metricsAddr) })
	}
	for _, tree := range trees {
		w, err := watcher.New(watcher.Options{DebounceWindow: cfg.DebounceDuration(), ForcePolling: pollOnly})
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return ignoreCanceled(w.Start(gctx, cfg.DatabasePath(tree)))
		})
		g.Go(func() error {
			if err := syncTree(gctx, e, tree); err != nil {
				slog.Error("initial_reindex_failed", slog.String("tree", tree), slog.String("error", err.Error()))
			}
			return ignoreCanceled(watcher.Run(gctx, w, func(ctx context.Context, batch []watcher.FileEvent) error {
				slog.Debug("database_changed", slog.String("tree", tree), slog.Int("files", len(batch)))
				return syncTree(ctx, e, tree)
			}))
		})
		_, _ = fmt.Fprintf(out, "Watching %s (tree %s)\n", cfg.DatabasePath(tree), tree)
	}

	return g.Wait()
}

// syncTree runs an incremental reindex of every flavour under the tree
// lock. A lock held by a manual reindex skips the batch; the next write
// to the database triggers another one.
func syncTree(ctx context.Context, e *env, tree string) error {
	lock, err := lockTree(e.cfg, tree)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	indexers, err := e.registry.Indexers(tree)
	if err != nil {
		return err
	}
	for _, ix := range indexers {
		s := runIndexer(ctx, ix, false, nil)
		if s.Err != nil {
			return s.Err
		}
		if s.Deleted+s.Added+s.Updated > 0 {
			slog.Info("tree_synced",
				slog.String("job", s.Job),
				slog.Int("deleted", s.Deleted),
				slog.Int("added", s.Added),
				slog.Int("updated", s.Updated),
				slog.Int64("duration_ms", s.Duration.Milliseconds()))
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("metrics_server_started", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
