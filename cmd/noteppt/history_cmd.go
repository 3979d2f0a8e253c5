package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/noteppt-cli/internal/cli"
	"github.com/fpang/noteppt-cli/internal/history"
	"github.com/fpang/noteppt-cli/internal/jobs"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversions recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 = all)")
	return cmd
}

func renderHistory(records []history.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		result := r.Location
		switch {
		case r.Error != "":
			result = r.Error
		case r.DeliveryNotice != "":
			result = r.DeliveryNotice
		case result == "":
			result = r.Artifact
		}
		rows = append(rows, []string{
			jobs.Short(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			r.SourceName,
			r.Provider,
			r.State,
			cli.FormatDurationShort(r.Duration()),
			result,
		})
	}
	return renderTable(
		[]string{"Job", "Started", "File", "Provider", "State", "Time", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
