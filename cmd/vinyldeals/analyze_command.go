package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guarzo/vinyldeals/internal/model"
	"github.com/guarzo/vinyldeals/internal/report"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var csvDir string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "analyze <search-run-id>...",
		Short: "Analyze search runs and store their snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results := a.newPool().RunAll(cmd.Context(), args)

			out := cmd.OutOrStdout()
			var failed int
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.RunID, res.Err)
					continue
				}
				if !quiet {
					fmt.Fprintln(out, report.SnapshotSummary(res.Snapshot))
					if len(res.Snapshot.Recommendations) > 0 {
						fmt.Fprintln(out, report.RecommendationsTable(res.Snapshot.Recommendations))
					}
				}
				if csvDir != "" {
					if err := writeCSVFile(csvDir, res.Snapshot); err != nil {
						return err
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "Also write <search-run-id>.csv files to this directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print results")
	return cmd
}

func writeCSVFile(dir string, snap *model.AnalysisSnapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create csv directory %q: %w", dir, err)
	}
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(snap.SearchRunID) + ".csv"
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := report.WriteRecommendationsCSV(f, snap.Recommendations); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
