package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gramps-project/grampsindex/internal/docstore"
	"github.com/gramps-project/grampsindex/internal/embed"
	"github.com/gramps-project/grampsindex/pkg/version"
)

// buildReport adds the index capabilities of this binary to the build info.
type buildReport struct {
	version.BuildInfo
	Backends        []docstore.Backend `json:"backends"`
	LocalEmbeddings bool               `json:"local_embeddings"`
}

func newBuildReport() buildReport {
	return buildReport{
		BuildInfo:       version.GetInfo(),
		Backends:        []docstore.Backend{docstore.BackendMemory, docstore.BackendBleve, docstore.BackendSQLite},
		LocalEmbeddings: embed.LocalModelsAvailable,
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and index capabilities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, version.Version)
				return err
			}
			report := newBuildReport()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			names := make([]string, len(report.Backends))
			for i, b := range report.Backends {
				names[i] = string(b)
			}
			local := "unavailable (built without cgo)"
			if report.LocalEmbeddings {
				local = "available"
			}
			_, err := fmt.Fprintf(out, "%s\nindex backends: %s\nlocal embedding models: %s\n",
				version.String(), strings.Join(names, ", "), local)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
