package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/alertack/internal/repo/backend"
)

func newRunsCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "runs",
		Short: "List the most recent reconciliation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkOutput(); err != nil {
				return err
			}
			cfg, log, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := backend.Open(cmd.Context(), cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wantJSON() {
				return printJSON(out, runs)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tRUN\tALERTS\tOK\tFAILED\tTOOK\tNOTE")
			for _, r := range runs {
				note := ""
				if r.Aborted {
					note = "aborted: " + r.Error
				}
				took := time.Duration(r.DurationMS * float64(time.Millisecond)).Round(time.Millisecond)
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					humanize.Time(r.RecordedAt), r.RunID, r.TotalAlerts, r.SuccessfulAcks, r.FailedAcks, took, note)
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs")
	return c
}
