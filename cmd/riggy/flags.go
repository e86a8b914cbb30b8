package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/config"
)

// sessionFlags are the session options shared by run, serve and replay. A
// flag overrides the config file only when it was set on the command line.
type sessionFlags struct {
	configPath string

	tilt       string
	vibration  string
	unit       string
	tiltMargin float64
	vibMargin  float64
	window     int
	alpha      float64

	port      int
	bufSize   int
	timeout   string
	tiltSound string
	vibSound  string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "JSON session config file")
	fs.StringVar(&f.tilt, "tilt", "", fmt.Sprintf("tilt alert threshold in degrees (default %g)", config.DefaultTiltThreshold))
	fs.StringVar(&f.vibration, "vibration", "", fmt.Sprintf("vibration alert threshold (default %g)", config.DefaultVibrationThreshold))
	fs.StringVar(&f.unit, "unit", "", "vibration unit: g or mps2 (default g)")
	fs.Float64Var(&f.tiltMargin, "tilt-margin", config.DefaultTiltMargin, "degrees below the tilt threshold at which a tilt alert clears")
	fs.Float64Var(&f.vibMargin, "vibration-margin", 0, "amount below the vibration threshold at which a vibration alert clears (default 0.3 g)")
	fs.IntVarP(&f.window, "window", "w", config.DefaultWindowSize, "samples per moving window and calibration")
	fs.Float64Var(&f.alpha, "alpha", config.DefaultAlpha, "gravity low-pass smoothing factor in [0, 1)")
	fs.IntVarP(&f.port, "port", "p", config.DefaultPort, "UDP port to listen on")
	fs.IntVar(&f.bufSize, "buffer-size", config.DefaultBufferSize, "datagram receive buffer in bytes")
	fs.StringVar(&f.timeout, "receive-timeout", config.DefaultReceiveTimeout.String(), "socket read timeout")
	fs.StringVar(&f.tiltSound, "tilt-sound", config.DefaultTiltSound, "sound played on a tilt alert")
	fs.StringVar(&f.vibSound, "vibration-sound", config.DefaultVibrationSound, "sound played on a vibration alert")
}

// resolve loads the config file, if any, and applies the flags that were
// set explicitly.
func (f *sessionFlags) resolve(cmd *cobra.Command) (config.SessionConfig, error) {
	var base config.SessionConfig
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.SessionConfig{}, err
		}
		base = *loaded
	}

	changed := cmd.Flags().Changed
	o := &config.SessionConfig{}
	if changed("tilt") {
		o.TiltThreshold = config.Float64(config.ParseThreshold(f.tilt, config.DefaultTiltThreshold))
	}
	if changed("vibration") {
		o.VibrationThreshold = config.Float64(config.ParseThreshold(f.vibration, config.DefaultVibrationThreshold))
	}
	if changed("unit") {
		o.VibrationUnit = config.String(f.unit)
	}
	if changed("tilt-margin") {
		o.TiltMargin = config.Float64(f.tiltMargin)
	}
	if changed("vibration-margin") {
		o.VibrationMargin = config.Float64(f.vibMargin)
	}
	if changed("window") {
		o.WindowSize = config.Int(f.window)
	}
	if changed("alpha") {
		o.SmoothingAlpha = config.Float64(f.alpha)
	}
	if changed("port") {
		o.Port = config.Int(f.port)
	}
	if changed("buffer-size") {
		o.BufferSize = config.Int(f.bufSize)
	}
	if changed("receive-timeout") {
		o.ReceiveTimeout = config.String(f.timeout)
	}
	if changed("tilt-sound") {
		o.TiltSound = config.String(f.tiltSound)
	}
	if changed("vibration-sound") {
		o.VibrationSound = config.String(f.vibSound)
	}

	cfg := base.Merge(o)
	if err := cfg.Validate(); err != nil {
		return config.SessionConfig{}, err
	}
	return cfg, nil
}
