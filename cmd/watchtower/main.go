package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/watchtower/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "watchtower",
		Short: "Stateful detector evaluation engine",
		Long: `Watchtower evaluates threshold detectors against streams of telemetry
packets, keeping durable per-group trigger state so each state transition is
reported exactly once: an issue occurrence when a detector fires and a status
change when it resolves. Downstream workflow actions are throttled per
(action, group) so a flapping detector cannot spam its notification targets.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
		commands.NewValidateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
