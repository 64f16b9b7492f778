package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guarzo/vinyldeals/internal/worker"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if days <= 0 {
				days = a.cfg.Worker.RetentionDays
			}
			removed, err := worker.NewRetention(a.store, days, nil, a.logger).PruneOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d snapshots older than %d days\n", removed, days)

			if a.catalog != nil {
				forgotten, err := a.catalog.ForgetBefore(time.Now().AddDate(0, 0, -days))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Forgot %d catalog items not seen in %d days\n", forgotten, days)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (defaults to worker.retention_days)")
	return cmd
}
