package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/linkedin-connector/internal/report"
	"github.com/yourusername/linkedin-connector/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent results and today's request count",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			sentToday, err := store.CountToday(ctx)
			if err != nil {
				return err
			}
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			return printHistory(cmd.OutOrStdout(), records, stats, sentToday, a.cfg.Batch.DailyLimit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of results to show")
	return cmd
}

// printHistory keeps the colored status after the last tab so its escape codes
// never count toward a column width
func printHistory(w io.Writer, records []storage.Record, stats map[report.Status]int, sentToday, dailyLimit int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPROFILE\tMODE\tACTION\tMESSAGE\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format(time.DateTime), r.ProfileURL, r.Mode, r.Action, r.Message, colorStatus(r.Status))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nrequests today: %d/%d\n", sentToday, dailyLimit)
	for _, s := range []report.Status{report.StatusSent, report.StatusPending, report.StatusConnected, report.StatusFailed, report.StatusUnknown} {
		if n := stats[s]; n > 0 {
			fmt.Fprintf(w, "%s: %d\n", s, n)
		}
	}
	return nil
}
