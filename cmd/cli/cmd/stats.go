package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/alertack/internal/repo"
	"github.com/hamed0406/alertack/internal/repo/backend"
)

type statsReport struct {
	Window  string              `json:"window"`
	Stats   repo.Stats          `json:"stats"`
	AllTime int64               `json:"all_time_total"`
	Hourly  [24]repo.HourBucket `json:"hourly"`
}

func newStatsCmd() *cobra.Command {
	var window time.Duration
	c := &cobra.Command{
		Use:   "stats",
		Short: "Print acknowledgment statistics from the outcome store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkOutput(); err != nil {
				return err
			}
			if window <= 0 {
				return fmt.Errorf("--window must be positive, got %s", window)
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

			w := repo.Last(window, time.Now().UTC())
			rep := statsReport{Window: window.String()}
			if rep.Stats, err = store.Stats(cmd.Context(), w); err != nil {
				return err
			}
			if rep.AllTime, err = store.TotalAcks(cmd.Context()); err != nil {
				return err
			}
			if rep.Hourly, err = store.HourlyBuckets(cmd.Context(), w); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wantJSON() {
				return printJSON(out, rep)
			}
			s := rep.Stats
			fmt.Fprintf(out, "last %s\n", window)
			fmt.Fprintf(out, "  acknowledgments:  %s\n", humanize.Comma(s.Total))
			fmt.Fprintf(out, "  successful:       %s\n", humanize.Comma(s.Successful))
			fmt.Fprintf(out, "  failed:           %s\n", humanize.Comma(s.Failed))
			fmt.Fprintf(out, "  success rate:     %.2f%%\n", s.SuccessRate)
			fmt.Fprintf(out, "  avg latency:      %s ms\n", humanize.CommafWithDigits(s.AvgLatencyMS, 3))
			fmt.Fprintf(out, "all time:           %s\n", humanize.Comma(rep.AllTime))
			if s.Total > 0 {
				fmt.Fprintln(out, "by hour (UTC):")
				for _, b := range rep.Hourly {
					if b.Success+b.Failure == 0 {
						continue
					}
					fmt.Fprintf(out, "  %02d:00  %s%s  %d/%d\n", b.Hour,
						strings.Repeat("#", int(min(b.Success, 40))),
						strings.Repeat("x", int(min(b.Failure, 40))),
						b.Success, b.Failure)
				}
			}
			return nil
		},
	}
	c.Flags().DurationVar(&window, "window", 24*time.Hour, "look-back window")
	return c
}
