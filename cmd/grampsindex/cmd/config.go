package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gramps-project/grampsindex/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the grampsindex configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/grampsindex/config.yaml)
  3. --config, $GRAMPSINDEX_CONFIG or ./grampsindex.yaml
  4. Environment variables (SEARCH_INDEX_DB_URI, VECTOR_EMBEDDING_*,
     GRAMPSINDEX_*)`,
		Example: `  grampsindex config init
  grampsindex config show --json
  grampsindex config restore`,
		// Config commands must work while the configuration is broken.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

// targetConfigPath is the file written by init and restore.
func targetConfigPath(user bool) string {
	switch {
	case user:
		return config.GetUserConfigPath()
	case configPath != "":
		return configPath
	default:
		return config.FileName
	}
}

func newConfigInitCmd() *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Long: `Write the default configuration to ./grampsindex.yaml, the --config
path, or with --user the user configuration file. An existing file is
kept unless --force is given; it is backed up before being replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := targetConfigPath(user)
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); err == nil && !force {
				_, _ = fmt.Fprintf(out, "Configuration already exists: %s\nUse --force to overwrite it.\n", path)
				return nil
			}
			if err := config.NewConfig().WriteYAML(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "Created %s\nEdit database.path or database.trees, then run 'grampsindex reindex'.\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user configuration file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			// The API key is never printed.
			shown := *cfg
			if shown.Embeddings.APIKey != "" {
				shown.Embeddings.APIKey = "********"
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\n", config.GetUserConfigPath())
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", targetConfigPath(false))
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var user, list bool

	cmd := &cobra.Command{
		Use:   "restore [BACKUP]",
		Short: "Restore a configuration backup",
		Long: `Restore replaces the configuration file with a backup written by
'config init --force', by default the newest one. --list prints the
available backups.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := targetConfigPath(user)
			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if list {
				for _, b := range backups {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
				}
				return nil
			}

			var backup string
			switch {
			case len(args) == 1:
				backup = args[0]
			case len(backups) > 0:
				backup = backups[0]
			default:
				return fmt.Errorf("no backups of %s found", path)
			}
			if err := config.RestoreBackup(path, backup); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, backup)
			return err
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Restore the user configuration file")
	cmd.Flags().BoolVar(&list, "list", false, "List backups instead of restoring")

	return cmd
}
