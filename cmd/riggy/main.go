// riggy monitors a phone's accelerometer stream for sustained tilt and
// vibration, raising alerts and writing session reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "riggy",
		Short: "Tilt and vibration monitor for UDP accelerometer streams",
		Long: `riggy listens for accelerometer readings sent over UDP by a phone
sensor app, estimates gravity during a short calibration, then tracks the
windowed mean tilt and vibration and raises an alert whenever either crosses
its threshold.

Run "riggy serve" for the HTTP control surface, or "riggy run" for a single
headless session.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd(), newReplayCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}
