package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gramps-project/grampsindex/internal/logging"
	"github.com/gramps-project/grampsindex/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		tree           string
		includePrivate bool
		transport      string
	)

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the search index to chat assistants over MCP",
		Long: `Serve-mcp exposes the tools search_genealogy_database, count_documents
and get_current_date over the Model Context Protocol. Searches use the
semantic index when an embedding model is configured.

Only public collections are searched unless --include-private is given.
Stdout carries the protocol; logs go to the log file.`,
		Example: `  grampsindex serve-mcp --tree smith`,
		// Stdout belongs to the protocol, so --debug must not mirror to
		// stderr either; some clients merge the streams.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := "info"
			if cfg, err := loadConfig(); err == nil {
				level = cfg.Server.LogLevel
			}
			if debugMode {
				level = "debug"
			}
			if err := setupLogging(logging.ServerConfig(level)); err != nil {
				return err
			}
			return startProfiling()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), tree, includePrivate, transport)
		},
	}

	cmd.Flags().StringVar(&tree, "tree", "", "Tree used when a tool call names none")
	cmd.Flags().BoolVar(&includePrivate, "include-private", false, "Allow tools to read private records")
	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default server.transport)")

	return cmd
}

func runServe(ctx context.Context, flagTree string, includePrivate bool, transport string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tree := flagTree
	if tree == "" && len(cfg.Trees()) == 1 {
		tree = cfg.Trees()[0]
	}
	if transport == "" {
		transport = cfg.Server.Transport
	}

	e := openEnv(ctx, cfg)
	defer func() { _ = e.Close() }()

	srv, err := mcp.NewServer(e.registry, cfg, mcp.Options{Tree: tree, IncludePrivate: includePrivate})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, transport)
}
