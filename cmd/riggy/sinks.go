package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/audio"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/notify"
)

// sinkFlags select where alerts go besides the log.
type sinkFlags struct {
	soundDir    string
	mute        bool
	natsURL     string
	natsSubject string
}

func (f *sinkFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.soundDir, "sounds", ".", "directory holding the alert sounds")
	fs.BoolVar(&f.mute, "mute", false, "do not play alert sounds")
	fs.StringVar(&f.natsURL, "nats", "", "NATS server URL to publish alerts to (disabled when empty)")
	fs.StringVar(&f.natsSubject, "nats-subject", notify.DefaultSubject, "NATS subject for alerts")
}

// alertSinks builds the per-session sink factory. pub may be nil.
func alertSinks(player audio.Player, pub notify.Publisher, subject string) func(id string, cfg *config.SessionConfig) []alert.Sink {
	return func(id string, cfg *config.SessionConfig) []alert.Sink {
		var sinks []alert.Sink
		if player != nil {
			sinks = append(sinks, audio.NewAnnouncer(player, cfg))
		}
		if pub != nil {
			sinks = append(sinks, notify.NewSink(pub, subject, id, cfg.GetVibrationUnit().Symbol()))
		}
		return sinks
	}
}

// open returns the configured player and publisher, and a func releasing
// them. Missing sounds are reported once here.
func (f *sinkFlags) open(cfg config.SessionConfig) (audio.Player, notify.Publisher, func(), error) {
	var player audio.Player
	var fp *audio.FilePlayer
	if !f.mute {
		_, missing := audio.Available(f.soundDir, cfg.GetTiltSound(), cfg.GetVibrationSound())
		for _, name := range missing {
			monitoring.Logf("Alert sound %s not found in %s; it will be skipped", name, f.soundDir)
		}
		fp = audio.NewFilePlayer(f.soundDir)
		player = fp
	}

	closeFn := func() {
		if fp != nil {
			fp.Wait()
		}
	}
	if f.natsURL == "" {
		return player, nil, closeFn, nil
	}

	nc, err := notify.Connect(f.natsURL, "riggy")
	if err != nil {
		return nil, nil, nil, err
	}
	monitoring.Logf("Publishing alerts to %s on %s", f.natsURL, f.natsSubject)
	return player, nc, func() {
		if err := nc.Drain(); err != nil {
			monitoring.Logf("NATS drain failed: %v", err)
		}
		closeFn()
	}, nil
}
