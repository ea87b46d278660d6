package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/index"
)

// objectFunc applies a single-object change to one indexer.
type objectFunc func(ctx context.Context, ix *index.Indexer, handle string, class gramps.Class) error

func newIndexObjectCmd() *cobra.Command {
	return newObjectCmd("index-object", "Index or reindex one object",
		`Index-object rewrites the documents of one object in every collection
of the tree. An object without text, or a private one without public
text, leaves the affected collections.`,
		"Indexed",
		func(ctx context.Context, ix *index.Indexer, handle string, class gramps.Class) error {
			return ix.AddOrUpdateObject(ctx, handle, class)
		})
}

func newDeleteObjectCmd() *cobra.Command {
	return newObjectCmd("delete-object", "Remove one object from the index",
		`Delete-object removes the documents of one object from every
collection of the tree. The Gramps database is not touched.`,
		"Deleted",
		func(ctx context.Context, ix *index.Indexer, handle string, class gramps.Class) error {
			return ix.DeleteObject(ctx, handle, class)
		})
}

func newObjectCmd(use, short, long, verb string, apply objectFunc) *cobra.Command {
	var tree string

	cmd := &cobra.Command{
		Use:     use + " CLASS HANDLE",
		Short:   short,
		Long:    long,
		Example: "  grampsindex " + use + " --tree smith person a1b2c3d4e5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := gramps.ParseClass(args[0])
			if err != nil {
				return err
			}
			handle := args[1]

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
			if err := e.requireEmbedder(); err != nil {
				return err
			}

			lock, err := lockTree(cfg, t)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			indexers, err := e.registry.Indexers(t)
			if err != nil {
				return err
			}
			flavours := make([]string, 0, len(indexers))
			for _, ix := range indexers {
				if err := apply(cmd.Context(), ix, handle, class); err != nil {
					return err
				}
				flavours = append(flavours, string(ix.Kind()))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s in tree %s (%s)\n",
				verb, class.Lower(), handle, t, strings.Join(flavours, ", "))
			return err
		},
	}

	cmd.Flags().StringVar(&tree, "tree", "", "Tree of the object")

	return cmd
}
