// Command alertack-cli runs one reconciliation pass, dispatches
// notifications from a snapshot, and prints stored statistics.
package main

import (
	"os"

	"github.com/hamed0406/alertack/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
