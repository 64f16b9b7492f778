package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.store.ListSnapshots(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No snapshots stored")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.SearchRunID,
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					s.Destination,
					strconv.Itoa(s.ListingsReceived),
					strconv.Itoa(s.RecommendationCount),
					strconv.Itoa(s.WarningCount),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Search Run", "Analyzed", "Dest", "Listings", "Deals", "Warnings"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum snapshots to list (0 for all)")
	return cmd
}
