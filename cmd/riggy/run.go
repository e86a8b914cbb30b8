package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/report"
	"github.com/banshee-data/riggy/internal/session"
	"github.com/banshee-data/riggy/internal/store"
)

type runOptions struct {
	session  sessionFlags
	sinks    sinkFlags
	outDir   string
	noPlots  bool
	duration time.Duration
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session until interrupted, then write its report",
		Long: `run binds the sensor port, calibrates and monitors until SIGINT or
SIGTERM (or --duration elapses), then writes a text report and, unless
--no-plots is given, PNG plots of the tilt and vibration histories.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.session.register(cmd)
	o.sinks.register(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&o.outDir, "out", "o", ".", "directory for the report and plots")
	fs.BoolVar(&o.noPlots, "no-plots", false, "skip the PNG plots")
	fs.DurationVarP(&o.duration, "duration", "d", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command) error {
	cfg, err := o.session.resolve(cmd)
	if err != nil {
		return err
	}
	player, pub, release, err := o.sinks.open(cfg)
	if err != nil {
		return err
	}
	defer release()

	mgr := session.NewManager(session.Options{
		Sinks: alertSinks(player, pub, o.sinks.natsSubject),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	id, err := mgr.Start(ctx, &cfg)
	if err != nil {
		return err
	}
	monitoring.Logf("Session %s listening on UDP port %d; press Ctrl-C to stop", id, cfg.GetPort())

	// The session ends with ctx, or earlier if the socket fails.
	runErr := mgr.Wait()

	if sum := mgr.Last(); sum != nil {
		if err := writeReports(o.outDir, sum, mgr.Store(), !o.noPlots); err != nil {
			return err
		}
	}
	return runErr
}

// writeReports writes the text report for sum and, if plots is set, the
// history plots from st.
func writeReports(dir string, sum *session.Summary, st *store.Store, plots bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	now := time.Now()
	path, err := report.WriteTextFile(dir, sum, now)
	if err != nil {
		return err
	}
	monitoring.Logf("Report written to %s", path)

	if plots {
		paths, err := report.WritePlots(dir, sum, st.History(alert.Tilt), st.History(alert.Vibration), now)
		if err != nil {
			return err
		}
		for _, p := range paths {
			monitoring.Logf("Plot written to %s", p)
		}
	}
	return nil
}
