package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guarzo/vinyldeals/internal/searchctx"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <run-file>...",
		Short: "Load search run files into the configured search source",
		Long: "Reads search run JSON files (optionally brotli compressed, *.json.br) and stores them\n" +
			"where the analyzer reads runs from: the search tables when search.source is sql,\n" +
			"or the run directory otherwise.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				run, err := searchctx.ReadRunFile(path)
				if err != nil {
					return err
				}
				if run.RunID == "" {
					run.RunID = runIDFromPath(path)
				}

				if a.cfg.Search.Source == "sql" {
					err = searchctx.NewSQLProvider(a.store).Save(cmd.Context(), run)
				} else {
					err = searchctx.NewFileProvider(a.cfg.Search.Dir).Save(run)
				}
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(out, "Imported search run %s (%d listings)\n", run.RunID, len(run.Listings))
			}
			return nil
		},
	}
}

func runIDFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".br")
	return strings.TrimSuffix(name, ".json")
}
