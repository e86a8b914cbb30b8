package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/riggy/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConfig_Defaults(t *testing.T) {
	cfg := &SessionConfig{}

	assert.Equal(t, 80.0, cfg.GetTiltThreshold())
	assert.Equal(t, 1.5, cfg.GetVibrationThreshold())
	assert.Equal(t, units.G, cfg.GetVibrationUnit())
	assert.Equal(t, 20.0, cfg.GetTiltMargin())
	assert.Equal(t, 0.3, cfg.GetVibrationMargin())
	assert.Equal(t, 20, cfg.GetWindowSize())
	assert.Equal(t, 0.9, cfg.GetSmoothingAlpha())
	assert.Equal(t, 5000, cfg.GetPort())
	assert.Equal(t, 1024, cfg.GetBufferSize())
	assert.Equal(t, 20*time.Millisecond, cfg.GetReceiveTimeout())
	assert.Equal(t, "alerta_inclinacao.mp3", cfg.GetTiltSound())
	assert.Equal(t, "alerta_vibracao.mp3", cfg.GetVibrationSound())
	assert.NoError(t, cfg.Validate())
}

func TestSessionConfig_VibrationMarginFollowsUnit(t *testing.T) {
	cfg := &SessionConfig{VibrationUnit: String("m/s²")}
	assert.Equal(t, units.MPS2, cfg.GetVibrationUnit())
	assert.InDelta(t, 0.3*9.81, cfg.GetVibrationMargin(), 1e-12)

	// An explicit margin is taken as given.
	cfg.VibrationMargin = Float64(3)
	assert.Equal(t, 3.0, cfg.GetVibrationMargin())
}

func TestSessionConfig_BufferSizeClamped(t *testing.T) {
	assert.Equal(t, 1024, (&SessionConfig{BufferSize: Int(10)}).GetBufferSize())
	assert.Equal(t, 1500, (&SessionConfig{BufferSize: Int(1500)}).GetBufferSize())
	assert.Equal(t, 2048, (&SessionConfig{BufferSize: Int(65536)}).GetBufferSize())
}

func TestSessionConfig_ReceiveTimeoutFallback(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, (&SessionConfig{ReceiveTimeout: String("10ms")}).GetReceiveTimeout())
	assert.Equal(t, DefaultReceiveTimeout, (&SessionConfig{ReceiveTimeout: String("soon")}).GetReceiveTimeout())
	assert.Equal(t, DefaultReceiveTimeout, (&SessionConfig{ReceiveTimeout: String("")}).GetReceiveTimeout())
}

func TestSessionConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionConfig
	}{
		{"zero window", SessionConfig{WindowSize: Int(0)}},
		{"alpha one", SessionConfig{SmoothingAlpha: Float64(1)}},
		{"negative alpha", SessionConfig{SmoothingAlpha: Float64(-0.1)}},
		{"unknown unit", SessionConfig{VibrationUnit: String("knots")}},
		{"port too large", SessionConfig{Port: Int(70000)}},
		{"negative margin", SessionConfig{TiltMargin: Float64(-1)}},
		{"negative vibration margin", SessionConfig{VibrationMargin: Float64(-0.1)}},
		{"bad timeout", SessionConfig{ReceiveTimeout: String("fast")}},
		{"zero timeout", SessionConfig{ReceiveTimeout: String("0s")}},
		{"nan alpha", SessionConfig{SmoothingAlpha: Float64(math.NaN())}},
		{"nan tilt threshold", SessionConfig{TiltThreshold: Float64(math.NaN())}},
		{"inf vibration threshold", SessionConfig{VibrationThreshold: Float64(math.Inf(1))}},
		{"inf tilt margin", SessionConfig{TiltMargin: Float64(math.Inf(1))}},
		{"nan vibration margin", SessionConfig{VibrationMargin: Float64(math.NaN())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "want ErrInvalid, got %v", err)
		})
	}
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in   string
		def  float64
		want float64
	}{
		{"75", 80, 75},
		{" 62.5 ", 80, 62.5},
		{"1,8", 1.5, 1.8},
		{"", 80, 80},
		{"abc", 1.5, 1.5},
		{"NaN", 80, 80},
		{"inf", 80, 80},
		{"1e400", 80, 80},
	}
	for _, tt := range tests {
		if got := ParseThreshold(tt.in, tt.def); got != tt.want {
			t.Errorf("ParseThreshold(%q, %v) = %v, want %v", tt.in, tt.def, got, tt.want)
		}
	}
}

func TestFromText(t *testing.T) {
	cfg := FromText("seventy", "2.0")
	assert.Equal(t, DefaultTiltThreshold, cfg.GetTiltThreshold())
	assert.Equal(t, 2.0, cfg.GetVibrationThreshold())
}

func TestMerge(t *testing.T) {
	base := SessionConfig{TiltThreshold: Float64(70), Port: Int(6000)}
	merged := base.Merge(&SessionConfig{Port: Int(7000), WindowSize: Int(10)})

	assert.Equal(t, 70.0, merged.GetTiltThreshold())
	assert.Equal(t, 7000, merged.GetPort())
	assert.Equal(t, 10, merged.GetWindowSize())
	assert.Equal(t, 6000, base.GetPort(), "Merge must not modify the receiver")
	assert.Equal(t, base, base.Merge(nil))
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "session.json")
	testJSON := `{
  "tilt_threshold": 45,
  "vibration_unit": "mps2",
  "window_size": 10,
  "receive_timeout": "15ms"
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 45.0, cfg.GetTiltThreshold())
	assert.Equal(t, units.MPS2, cfg.GetVibrationUnit())
	assert.Equal(t, 10, cfg.GetWindowSize())
	assert.Equal(t, 15*time.Millisecond, cfg.GetReceiveTimeout())
	// Omitted fields keep defaults.
	assert.Equal(t, 5000, cfg.GetPort())
}

func TestLoad_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(filepath.Join(tmpDir, "session.yaml"))
	assert.ErrorContains(t, err, ".json extension")

	_, err = Load(filepath.Join(tmpDir, "missing.json"))
	assert.ErrorContains(t, err, "stat")

	bad := filepath.Join(tmpDir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse")

	invalid := filepath.Join(tmpDir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"window_size": 0}`), 0o644))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrInvalid)
}
