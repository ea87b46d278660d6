// Package cmd provides the CLI commands of grampsindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/logging"
	"github.com/gramps-project/grampsindex/internal/profiling"
	"github.com/gramps-project/grampsindex/pkg/version"
)

// Global flags
var (
	configPath     string
	debugMode      bool
	noColor        bool
	loggingCleanup func()
)

// Profiling flags
var (
	profileOpts profiling.Options
	profiler    *profiling.Session
)

// NewRootCmd creates the root command of the grampsindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grampsindex",
		Short: "Keep the search index of a Gramps family tree consistent",
		Long: `grampsindex maintains the keyword and semantic search collections of
Gramps family trees. Every tree has a full collection and a public one
that never contains text of private records.

Reindex a tree with 'grampsindex reindex --tree NAME', keep it current
with 'grampsindex watch', and expose it to chat assistants with
'grampsindex serve-mcp'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("grampsindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./grampsindex.yaml or $GRAMPSINDEX_CONFIG)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging, mirrored to stderr")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCountCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newIndexObjectCmd())
	cmd.AddCommand(newDeleteObjectCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging writes JSON records to the rotating log file. --debug
// lowers the level and mirrors records to stderr.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if lvl := os.Getenv("GRAMPSINDEX_LOG_LEVEL"); lvl != "" {
		cfg.Level = lvl
	}
	if debugMode {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	return startProfiling()
}

func startProfiling() error {
	// A failed RunE skips the post-run hook.
	if profiler != nil {
		_ = profiler.Stop()
		profiler = nil
	}
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profiler = s
	return nil
}

func setupLogging(cfg logging.Config) error {
	if loggingCleanup != nil {
		loggingCleanup()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints failures with their code and
// suggestion.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		slog.Error("command_failed", slog.String("error", err.Error()))
		_, _ = fmt.Fprintln(root.ErrOrStderr(), gerrors.FormatForCLI(err))
		_ = stopProfilingAndLogging(root, nil)
	}
	return err
}
