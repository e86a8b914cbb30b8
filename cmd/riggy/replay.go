package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/ingest"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/session"
	"github.com/banshee-data/riggy/internal/store"
)

type replayOptions struct {
	session sessionFlags
	outDir  string
	noPlots bool
}

func newReplayCmd() *cobra.Command {
	o := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <capture.pcap>",
		Short: "Run a session over a packet capture and write its report",
		Long: `replay feeds the UDP payloads addressed to --port in a pcap file
through the same pipeline as a live session. Alerts are logged only. The
binary must be built with the pcap tag.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.session.register(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&o.outDir, "out", "o", ".", "directory for the report and plots")
	fs.BoolVar(&o.noPlots, "no-plots", false, "skip the PNG plots")
	return cmd
}

func (o *replayOptions) run(cmd *cobra.Command, path string) error {
	cfg, err := o.session.resolve(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(cfg.GetWindowSize())
	loop := ingest.NewLoop(ingest.LoopConfig{
		Pipeline: ingest.NewPipeline(st, &cfg, ingest.PipelineOptions{}),
	})

	started := time.Now()
	if err := loop.ReplayPCAP(ctx, path, cfg.GetPort()); err != nil {
		return err
	}
	if !loop.Pipeline().Calibrated() {
		monitoring.Logf("Capture ended during calibration; the report will be empty")
	}

	sum := session.Summarize(uuid.NewString(), started, time.Now(), cfg, st, loop.Stats().Totals())
	return writeReports(o.outDir, sum, st, !o.noPlots)
}
