package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gramps-project/grampsindex/internal/docstore"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/index"
	"github.com/gramps-project/grampsindex/internal/ui"
)

type searchOptions struct {
	tree        string
	page        int
	pageSize    int
	private     bool
	types       []string
	sort        []string
	changeOp    string
	changeValue int64
	hasChange   bool
	content     bool
	semantic    bool
	jsonOutput  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index of a tree",
		Long: `Search runs a keyword query, or a semantic one with --semantic, against
the public collection of a tree. --private searches the full collection
including private records. An empty query or "*" lists documents.

Filters:
  --type person --type note     restrict object types
  --change-op '>' --change-value 1700000000
                                compare the change time
  --sort -change                sort by change, type, handle or id`,
		Example: `  grampsindex search --tree smith "Springfield"
  grampsindex search --tree smith --type note --sort -change '*'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			opts.hasChange = cmd.Flags().Changed("change-value")
			return runSearch(cmd.Context(), cmd.OutOrStdout(), query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tree, "tree", "", "Tree to search")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Result page, starting at 1")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Results per page (default search.page_size)")
	cmd.Flags().BoolVar(&opts.private, "private", false, "Search the full collection including private records")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "Restrict to object types (person, family, event, ...)")
	cmd.Flags().StringSliceVar(&opts.sort, "sort", nil, "Sort fields, '-' prefix for descending")
	cmd.Flags().StringVar(&opts.changeOp, "change-op", "", "Change time comparison: >, <, >= or <=")
	cmd.Flags().Int64Var(&opts.changeValue, "change-value", 0, "Change time compared with --change-op")
	cmd.Flags().BoolVar(&opts.content, "content", false, "Print the indexed text of every hit")
	cmd.Flags().BoolVar(&opts.semantic, "semantic", false, "Use the semantic index")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, out io.Writer, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tree, err := singleTree(cfg, opts.tree)
	if err != nil {
		return err
	}
	if opts.changeOp != "" && !opts.hasChange {
		return gerrors.New(gerrors.ErrCodeInvalidFilter, "--change-op needs --change-value", nil)
	}

	e := openEnv(ctx, cfg)
	defer func() { _ = e.Close() }()

	kind := docstore.KindKeyword
	if opts.semantic {
		if err := e.requireEmbedder(); err != nil {
			return err
		}
		kind = docstore.KindSemantic
	}
	ix, err := e.registry.Get(tree, kind)
	if err != nil {
		return err
	}

	pageSize := opts.pageSize
	if pageSize == 0 {
		pageSize = cfg.Search.PageSize
	}
	req := index.SearchRequest{
		Query:          query,
		Page:           opts.page,
		PageSize:       pageSize,
		IncludePrivate: opts.private,
		Sort:           opts.sort,
		ObjectTypes:    opts.types,
		ChangeOp:       opts.changeOp,
		IncludeContent: opts.content,
	}
	if opts.hasChange {
		v := opts.changeValue
		req.ChangeValue = &v
	}

	res, err := ix.Search(ctx, req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printSearchResult(out, res, opts.page, pageSize)
}

func printSearchResult(out io.Writer, res *index.SearchResult, page, pageSize int) error {
	styles := ui.GetStyles(noColor || ui.DetectNoColor())
	if len(res.Hits) == 0 {
		_, err := fmt.Fprintf(out, "No results (%d matches in total)\n", res.Total)
		return err
	}

	first := (page-1)*pageSize + 1
	_, _ = fmt.Fprintf(out, "%s\n\n", styles.Header.Render(
		fmt.Sprintf("Results %d-%d of %d", first, first+len(res.Hits)-1, res.Total)))
	for _, h := range res.Hits {
		// Ranks are 0-based across pages.
		_, _ = fmt.Fprintf(out, "%4d. %-10s %s %s\n", h.Rank+1, h.ObjectType, h.Handle,
			styles.Dim.Render(fmt.Sprintf("(%.3f)", h.Score)))
		if h.Content != "" {
			for _, line := range strings.Split(strings.TrimRight(h.Content, "\n"), "\n") {
				_, _ = fmt.Fprintf(out, "      %s\n", line)
			}
			_, _ = fmt.Fprintln(out)
		}
	}
	return nil
}

func newCountCmd() *cobra.Command {
	var (
		tree     string
		private  bool
		semantic bool
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the documents in the index of a tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			t, err := singleTree(cfg, tree)
			if err != nil {
				return err
			}
			e := openEnv(cmd.Context(), cfg)
			defer func() { _ = e.Close() }()

			kind := docstore.KindKeyword
			if semantic {
				if err := e.requireEmbedder(); err != nil {
					return err
				}
				kind = docstore.KindSemantic
			}
			ix, err := e.registry.Get(t, kind)
			if err != nil {
				return err
			}
			n, err := ix.Count(cmd.Context(), private)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}

	cmd.Flags().StringVar(&tree, "tree", "", "Tree to count")
	cmd.Flags().BoolVar(&private, "private", false, "Count the full collection including private records")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Count the semantic collection")

	return cmd
}
