package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/audio"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/ingest"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/notify"
	"github.com/banshee-data/riggy/internal/session"
	"github.com/banshee-data/riggy/internal/store"
	"github.com/banshee-data/riggy/internal/version"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func parsed(t *testing.T, args ...string) (*cobra.Command, *sessionFlags) {
	t.Helper()
	f := &sessionFlags{}
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f
}

func TestSessionFlags_Defaults(t *testing.T) {
	cmd, f := parsed(t)
	cfg, err := f.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.SessionConfig{}, cfg)
	assert.Equal(t, config.DefaultPort, cfg.GetPort())
}

func TestSessionFlags_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tilt_threshold": 60, "window_size": 10, "vibration_unit": "mps2"}`), 0o644))

	cmd, f := parsed(t, "--config", path, "--tilt", "70,5", "--vibration", "junk", "-p", "6000")
	cfg, err := f.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, 70.5, cfg.GetTiltThreshold())
	assert.Equal(t, config.DefaultVibrationThreshold, cfg.GetVibrationThreshold())
	assert.Equal(t, 10, cfg.GetWindowSize())
	assert.Equal(t, "mps2", string(cfg.GetVibrationUnit()))
	assert.Equal(t, 6000, cfg.GetPort())
}

func TestSessionFlags_Invalid(t *testing.T) {
	cmd, f := parsed(t, "--window", "0")
	_, err := f.resolve(cmd)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cmd, f = parsed(t, "--unit", "furlongs")
	_, err = f.resolve(cmd)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cmd, f = parsed(t, "--config", filepath.Join(t.TempDir(), "missing.json"))
	_, err = f.resolve(cmd)
	assert.Error(t, err)
}

type capturePublisher struct {
	subjects []string
	payloads [][]byte
}

func (c *capturePublisher) Publish(subject string, data []byte) error {
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestAlertSinks(t *testing.T) {
	rec := &audio.Recorder{}
	pub := &capturePublisher{}
	build := alertSinks(rec, pub, "site.alerts")

	cfg := &config.SessionConfig{VibrationUnit: config.String("mps2")}
	sinks := build("abc", cfg)
	require.Len(t, sinks, 2)
	for _, s := range sinks {
		s.OnAlert(alert.Event{Kind: alert.Vibration, Time: time.Unix(10, 0).UTC(), Value: 14.7})
	}

	assert.Equal(t, []string{config.DefaultVibrationSound}, rec.Played())
	require.Equal(t, []string{"site.alerts"}, pub.subjects)
	var msg notify.Message
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, "abc", msg.Session)
	assert.Equal(t, "vibration", msg.Kind)
	assert.Equal(t, "m/s²", msg.Unit)

	assert.Empty(t, alertSinks(nil, nil, "")("x", cfg))
}

func TestSinkFlags_OpenMuted(t *testing.T) {
	f := &sinkFlags{mute: true}
	player, pub, release, err := f.open(config.SessionConfig{})
	require.NoError(t, err)
	assert.Nil(t, player)
	assert.Nil(t, pub)
	release()
}

func TestWriteReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	st := store.New(3)
	for _, v := range []float64{1, 2, 3, 4} {
		st.Append(v, v/10)
	}
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sum := session.Summarize("sess", start, start.Add(time.Minute), config.SessionConfig{}, st, ingest.DatagramCounts{Received: 4, Accepted: 4})

	require.NoError(t, writeReports(dir, sum, st, true))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Len(t, names, 3)
	var text string
	for _, n := range names {
		if strings.HasPrefix(n, "report_") {
			b, err := os.ReadFile(filepath.Join(dir, n))
			require.NoError(t, err)
			text = string(b)
		}
	}
	assert.Contains(t, text, "Points received: 4")
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, version.String()+"\n", out.String())
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "run", "replay", "version"})
}
