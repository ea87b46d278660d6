package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/ui"
)

func newCheckCmd() *cobra.Command {
	var (
		trees      []string
		repair     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the index with the Gramps database",
		Long: `Check reports documents of deleted objects (orphan), documents whose
change time differs from the object (stale), objects without a document
(missing; expected for objects without text) and public documents that
disagree with the full collection.

With --repair the issues are fixed under the tree lock. Without it the
command fails when anything but missing objects was found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), trees, repair, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&trees, "tree", nil, "Tree to check (repeatable; default all configured trees)")
	cmd.Flags().BoolVar(&repair, "repair", false, "Fix the inconsistencies found")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, flagTrees []string, repair, jsonOutput bool) error {
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

	info := ui.StatusInfo{IndexURI: cfg.Index.URI, EmbedderModel: cfg.Embeddings.Model, EmbedderStatus: "disabled"}
	if e.embedder != nil {
		info.EmbedderStatus = "ready"
	}

	var inconsistent []string
	for _, tree := range trees {
		checks, err := checkTree(ctx, e, tree, repair)
		info.Checks = append(info.Checks, checks...)
		if err != nil {
			return err
		}
		for _, c := range checks {
			if !c.Repaired && hasProblems(c.Counts) {
				inconsistent = append(inconsistent, c.Tree+"/"+c.Flavour)
			}
		}
	}

	r := ui.NewStatusRenderer(out, noColor || ui.DetectNoColor())
	if jsonOutput {
		err = r.RenderJSON(info)
	} else {
		err = r.Render(info)
	}
	if err != nil {
		return err
	}

	if len(inconsistent) > 0 {
		return gerrors.New(gerrors.ErrCodeIndexInconsistent,
			fmt.Sprintf("index is inconsistent: %s", strings.Join(inconsistent, ", ")), nil).
			WithSuggestion("Run 'grampsindex check --repair'")
	}
	return nil
}

func checkTree(ctx context.Context, e *env, tree string, repair bool) ([]ui.CheckStatus, error) {
	if repair {
		lock, err := lockTree(e.cfg, tree)
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Unlock() }()
	}

	indexers, err := e.registry.Indexers(tree)
	if err != nil {
		return nil, err
	}
	var out []ui.CheckStatus
	for _, ix := range indexers {
		res, err := ix.Check(ctx)
		if err != nil {
			return out, err
		}
		status := ui.CheckStatus{
			Tree:     tree,
			Flavour:  string(ix.Kind()),
			Checked:  res.Checked,
			Counts:   make(map[string]int),
			Duration: res.Duration,
		}
		for t, n := range res.Counts() {
			status.Counts[t.String()] = n
		}
		if repair && !res.Consistent() {
			fixed, err := ix.Repair(ctx, res, nil)
			if err != nil {
				return out, err
			}
			status.Repaired = true
			slog.Info("index_repaired",
				slog.String("tree", tree),
				slog.String("flavour", string(ix.Kind())),
				slog.Int("deleted", fixed.Deleted),
				slog.Int("added", fixed.Added),
				slog.Int("updated", fixed.Updated))
		}
		out = append(out, status)
	}
	return out, nil
}

func hasProblems(counts map[string]int) bool {
	for k, n := range counts {
		if k != "missing" && n > 0 {
			return true
		}
	}
	return false
}
