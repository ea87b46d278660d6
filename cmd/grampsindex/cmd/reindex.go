package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gramps-project/grampsindex/internal/config"
	"github.com/gramps-project/grampsindex/internal/index"
	"github.com/gramps-project/grampsindex/internal/ui"
)

// maxParallelTrees bounds concurrent tree jobs of one reindex run.
const maxParallelTrees = 4

func newReindexCmd() *cobra.Command {
	var (
		trees []string
		full  bool
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Bring the search index of trees up to date",
		Long: `Reindex compares the change time of every object in the Gramps
database with the index and writes only what differs. With --full the
collections are emptied and rebuilt from scratch.

Without --tree every tree under database.trees is reindexed, up to four
at a time. Semantic collections are included when an embedding model is
configured.`,
		Example: `  grampsindex reindex --tree smith
  grampsindex reindex --full --tree smith --tree jones`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReindex(cmd.Context(), cmd.OutOrStdout(), trees, full, plain)
		},
	}

	cmd.Flags().StringSliceVar(&trees, "tree", nil, "Tree to reindex (repeatable; default all configured trees)")
	cmd.Flags().BoolVar(&full, "full", false, "Rebuild the collections from scratch")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress output (no TUI)")

	return cmd
}

func runReindex(ctx context.Context, out io.Writer, flagTrees []string, full, plain bool) error {
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
	e := openEnv(ctx, cfg)
	defer func() { _ = e.Close() }()
	if err := e.requireEmbedder(); err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(out,
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor || ui.DetectNoColor()),
		ui.WithTitle("Reindexing "+strings.Join(trees, ", "))))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	jobID := uuid.NewString()
	start := time.Now()
	slog.Info("reindex_run_started",
		slog.String("job_id", jobID),
		slog.Any("trees", trees),
		slog.Bool("full", full))

	var (
		mu    sync.Mutex
		stats []ui.JobStats
	)
	var g errgroup.Group
	g.SetLimit(maxParallelTrees)
	for _, tree := range trees {
		g.Go(func() error {
			results, err := reindexTree(ctx, cfg, e, tree, full, renderer)
			mu.Lock()
			stats = append(stats, results...)
			mu.Unlock()
			return err
		})
	}
	runErr := g.Wait()

	model, dims := e.embedderInfo()
	renderer.Complete(ui.CompletionStats{
		JobID:    jobID,
		Jobs:     stats,
		Duration: time.Since(start),
		Embedder: ui.EmbedderInfo{Model: model, Dimensions: dims},
	})
	slog.Info("reindex_run_complete",
		slog.String("job_id", jobID),
		slog.Int("jobs", len(stats)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return runErr
}

// reindexTree runs every indexer of tree under the tree lock. A failed
// flavour stops the tree; other trees keep going.
func reindexTree(ctx context.Context, cfg *config.Config, e *env, tree string, full bool, r ui.Renderer) ([]ui.JobStats, error) {
	lock, err := lockTree(cfg, tree)
	if err != nil {
		r.AddError(ui.ErrorEvent{Job: tree, Err: err})
		return []ui.JobStats{{Job: tree, Mode: mode(full), Err: err}}, err
	}
	defer func() { _ = lock.Unlock() }()

	indexers, err := e.registry.Indexers(tree)
	if err != nil {
		r.AddError(ui.ErrorEvent{Job: tree, Err: err})
		return []ui.JobStats{{Job: tree, Mode: mode(full), Err: err}}, err
	}

	var stats []ui.JobStats
	for _, ix := range indexers {
		job := jobName(ix)
		r.UpdateProgress(ui.ProgressEvent{Job: job, Stage: ui.StagePreparing, Message: "reading inventory"})
		s := runIndexer(ctx, ix, full, func(current, total int) {
			r.UpdateProgress(ui.ProgressEvent{Job: job, Stage: ui.StageIndexing, Current: current, Total: total})
		})
		stats = append(stats, s)
		if s.Err != nil {
			r.AddError(ui.ErrorEvent{Job: job, Err: s.Err})
			return stats, s.Err
		}
		r.UpdateProgress(ui.ProgressEvent{Job: job, Stage: ui.StageComplete, Current: s.Objects, Total: s.Objects})
	}
	return stats, nil
}

// runIndexer performs one full or incremental reindex and reports it as
// job statistics.
func runIndexer(ctx context.Context, ix *index.Indexer, full bool, progress index.ProgressFunc) ui.JobStats {
	s := ui.JobStats{Job: jobName(ix), Mode: mode(full)}
	start := time.Now()
	processed := 0
	track := func(current, total int) {
		processed = current
		if progress != nil {
			progress(current, total)
		}
	}

	if full {
		s.Err = ix.ReindexFull(ctx, track)
	} else {
		res, err := ix.ReindexIncremental(ctx, track)
		if res != nil {
			s.Deleted, s.Added, s.Updated = res.Deleted, res.Added, res.Updated
		}
		s.Err = err
	}
	s.Objects = processed
	s.Duration = time.Since(start)
	return s
}

func jobName(ix *index.Indexer) string {
	return ix.Tree() + "/" + string(ix.Kind())
}

func mode(full bool) string {
	if full {
		return "full"
	}
	return "incremental"
}
