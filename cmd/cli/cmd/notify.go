package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hamed0406/alertack/internal/app"
	"github.com/hamed0406/alertack/internal/snapshot"
)

func newNotifyCmd() *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "notify",
		Short: "Email the alerts of a snapshot whose host belongs to the target hostgroup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(); err != nil {
				return err
			}
			cfg, log, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Centreon.Login == "" || cfg.Centreon.Password == "" {
				return errors.New("CENTREON_LOGIN and CENTREON_PASSWORD are required for hostgroup lookups")
			}
			if file == "" {
				file = cfg.Run.OutputFile
			}

			snap, err := snapshot.Read(file)
			if err != nil {
				return err
			}
			d, err := app.Dispatcher(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res := d.Dispatch(ctx, snap.Alerts, app.Membership(cfg, log)())

			out := cmd.OutOrStdout()
			if wantJSON() {
				return printJSON(out, res)
			}
			age := "unknown time"
			if !snap.Timestamp.IsZero() {
				age = humanize.Time(snap.Timestamp)
			}
			fmt.Fprintf(out, "snapshot %s from %s: %s alerts\n", file, age, humanize.Comma(int64(len(snap.Alerts))))
			fmt.Fprintf(out, "  hostgroup:  %s\n", cfg.Hostgroup.Target)
			fmt.Fprintf(out, "  sent:       %d\n", res.Sent)
			fmt.Fprintf(out, "  skipped:    %d\n", res.Skipped)
			fmt.Fprintf(out, "  failed:     %d\n", res.Failed)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  ! %s / %s: %s\n", e.HostName, e.ServiceName, e.Message)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d notification(s) failed", res.Failed)
			}
			return nil
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "snapshot file (default OUTPUT_FILE)")
	return c
}
