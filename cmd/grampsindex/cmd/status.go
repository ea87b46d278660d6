package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		trees      []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show document counts of the index",
		Long: `Status prints, per tree and flavour, the number of documents in the
full and public collections next to the number of objects in the Gramps
database, and whether semantic search is available.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), trees, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&trees, "tree", nil, "Tree to show (repeatable; default all configured trees)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

func runStatus(ctx context.Context, out io.Writer, flagTrees []string, jsonOutput bool) error {
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

	info := ui.StatusInfo{IndexURI: cfg.Index.URI, EmbedderModel: cfg.Embeddings.Model}
	switch {
	case e.embedderErr != nil:
		info.EmbedderStatus = "error"
	case e.embedder != nil:
		info.EmbedderStatus = "ready"
	default:
		info.EmbedderStatus = "disabled"
	}

	for _, tree := range trees {
		opener, err := openerFor(cfg)(tree)
		if err != nil {
			return err
		}
		objects, err := countObjects(ctx, opener)
		if err != nil {
			return err
		}
		indexers, err := e.registry.Indexers(tree)
		if err != nil {
			return err
		}
		for _, ix := range indexers {
			full, err := ix.Count(ctx, true)
			if err != nil {
				return err
			}
			public, err := ix.Count(ctx, false)
			if err != nil {
				return err
			}
			info.Collections = append(info.Collections, ui.CollectionStatus{
				Tree:    tree,
				Flavour: string(ix.Kind()),
				Full:    full,
				Public:  public,
				Objects: objects,
			})
		}
	}

	r := ui.NewStatusRenderer(out, noColor || ui.DetectNoColor())
	if jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

func countObjects(ctx context.Context, opener gramps.Opener) (int, error) {
	db, err := opener.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	return gramps.TotalObjects(ctx, db)
}
