// Package cmd holds the alertack-cli commands.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/config"
	"github.com/hamed0406/alertack/internal/logging"
)

var (
	envFile string
	output  string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "alertack-cli",
		Short: "Acknowledge unhandled Centreon alerts and report on past runs",
		Long: `alertack-cli acknowledges every unhandled WARNING/CRITICAL service
problem on a Centreon server, records each attempt, and emails alerts for
hosts of a chosen hostgroup.

Examples:
  # One reconciliation pass, then mail the SQUARE hostgroup alerts
  alertack-cli run --notify

  # Mail from the last snapshot only
  alertack-cli notify --file output/alerts_output.json

  # Failed acknowledgments of the last week
  alertack-cli history --success=false`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	c.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing is fine)")
	c.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")

	c.AddCommand(newRunCmd(), newNotifyCmd(), newStatsCmd(), newHistoryCmd(), newRunsCmd())
	return c
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads .env and the environment. Commands that never talk to
// the monitoring API pass needAPI=false so missing credentials are tolerated.
func loadConfig(needAPI bool) (config.Config, *zap.Logger, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	cfg, err := config.FromEnv()
	var ve *config.ValidationError
	if err != nil && (needAPI || !errors.As(err, &ve)) {
		return cfg, nil, err
	}
	log, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func wantJSON() bool { return output == "json" }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkOutput() error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown --output %q (want table or json)", output)
	}
	return nil
}
