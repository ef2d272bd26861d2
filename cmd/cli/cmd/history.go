package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/alertack/internal/repo"
	"github.com/hamed0406/alertack/internal/repo/backend"
)

func newHistoryCmd() *cobra.Command {
	var start, end, status, success string
	c := &cobra.Command{
		Use:   "history",
		Short: "List recorded acknowledgments for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkOutput(); err != nil {
				return err
			}
			f, err := repo.NewHistoryFilter(start, end, status, success, time.Now().UTC())
			if err != nil {
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

			page, err := store.History(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wantJSON() {
				return printJSON(out, page)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tHOST\tSERVICE\tSTATUS\tOK\tLATENCY\tERROR")
			for _, o := range page.Rows {
				lat := "-"
				if o.LatencyMS != nil {
					lat = fmt.Sprintf("%.0f ms", *o.LatencyMS)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
					humanize.Time(o.AcknowledgedAt), o.HostName, o.ServiceName,
					o.Status, o.Success, lat, o.ErrorMessage)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s total, %s successful, %s failed",
				humanize.Comma(page.Total), humanize.Comma(page.Successful), humanize.Comma(page.Failed))
			if page.Truncated {
				fmt.Fprintf(out, " (showing newest %d)", len(page.Rows))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	c.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (default: 6 days before --end)")
	c.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (default: today, UTC)")
	c.Flags().StringVar(&status, "status", "", "only this status (WARNING, CRITICAL, ...)")
	c.Flags().StringVar(&success, "success", "", "only successful (true) or failed (false) attempts")
	return c
}

