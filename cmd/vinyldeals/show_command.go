package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guarzo/vinyldeals/internal/report"
	"github.com/guarzo/vinyldeals/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <search-run-id>",
		Short: "Show the stored snapshot for a search run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "table" && format != "csv" {
				return fmt.Errorf("unsupported format %q (use table or csv)", format)
			}

			a, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.store.LoadSnapshot(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no snapshot stored for search run %s", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "csv" {
				return report.WriteRecommendationsCSV(out, snap.Recommendations)
			}
			fmt.Fprintln(out, report.SnapshotSummary(snap))
			if len(snap.Recommendations) > 0 {
				fmt.Fprintln(out, report.RecommendationsTable(snap.Recommendations))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or csv")
	return cmd
}
