package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/riggy/internal/units"
)

// Defaults applied when a field is unset or, for thresholds entered as
// text, cannot be parsed.
const (
	DefaultTiltThreshold      = 80.0
	DefaultVibrationThreshold = 1.5
	DefaultTiltMargin         = 20.0
	DefaultVibrationMarginG   = 0.3
	DefaultWindowSize         = 20
	DefaultAlpha              = 0.9
	DefaultPort               = 5000
	DefaultBufferSize         = 1024
	DefaultReceiveTimeout     = 20 * time.Millisecond
	DefaultTiltSound          = "alerta_inclinacao.mp3"
	DefaultVibrationSound     = "alerta_vibracao.mp3"

	MinBufferSize = 1024
	MaxBufferSize = 2048
)

// ErrInvalid marks configuration that cannot be recovered by defaulting.
var ErrInvalid = errors.New("invalid session config")

// SessionConfig carries the per-session options. The schema matches the
// /api/session/start body so the same JSON can be used from a file or over
// HTTP. Nil fields take their documented default.
type SessionConfig struct {
	TiltThreshold      *float64 `json:"tilt_threshold,omitempty"`
	VibrationThreshold *float64 `json:"vibration_threshold,omitempty"`
	VibrationUnit      *string  `json:"vibration_unit,omitempty"`
	TiltMargin         *float64 `json:"tilt_margin,omitempty"`
	VibrationMargin    *float64 `json:"vibration_margin,omitempty"`

	WindowSize     *int     `json:"window_size,omitempty"`
	SmoothingAlpha *float64 `json:"smoothing_alpha,omitempty"`

	Port           *int    `json:"port,omitempty"`
	BufferSize     *int    `json:"buffer_size,omitempty"`
	ReceiveTimeout *string `json:"receive_timeout,omitempty"` // duration string like "20ms"

	TiltSound      *string `json:"tilt_sound,omitempty"`
	VibrationSound *string `json:"vibration_sound,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Float64 returns a pointer to v, for building configs in code.
func Float64(v float64) *float64 { return ptrFloat64(v) }

// Int returns a pointer to v.
func Int(v int) *int { return ptrInt(v) }

// String returns a pointer to v.
func String(v string) *string { return ptrString(v) }

// Load reads a SessionConfig from a JSON file. Fields omitted from the file
// keep their defaults, so partial configs are safe.
func Load(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &SessionConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseThreshold parses a threshold typed by a user. Surrounding space is
// ignored and a decimal comma is accepted. Anything unparseable, or not
// finite, yields def.
func ParseThreshold(text string, def float64) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// FromText builds a config from two free-text threshold fields, the way a
// start form submits them. Bad input falls back to the defaults.
func FromText(tilt, vibration string) *SessionConfig {
	return &SessionConfig{
		TiltThreshold:      ptrFloat64(ParseThreshold(tilt, DefaultTiltThreshold)),
		VibrationThreshold: ptrFloat64(ParseThreshold(vibration, DefaultVibrationThreshold)),
	}
}

// Merge returns a copy of c with every non-nil field of o applied on top.
func (c SessionConfig) Merge(o *SessionConfig) SessionConfig {
	if o == nil {
		return c
	}
	if o.TiltThreshold != nil {
		c.TiltThreshold = o.TiltThreshold
	}
	if o.VibrationThreshold != nil {
		c.VibrationThreshold = o.VibrationThreshold
	}
	if o.VibrationUnit != nil {
		c.VibrationUnit = o.VibrationUnit
	}
	if o.TiltMargin != nil {
		c.TiltMargin = o.TiltMargin
	}
	if o.VibrationMargin != nil {
		c.VibrationMargin = o.VibrationMargin
	}
	if o.WindowSize != nil {
		c.WindowSize = o.WindowSize
	}
	if o.SmoothingAlpha != nil {
		c.SmoothingAlpha = o.SmoothingAlpha
	}
	if o.Port != nil {
		c.Port = o.Port
	}
	if o.BufferSize != nil {
		c.BufferSize = o.BufferSize
	}
	if o.ReceiveTimeout != nil {
		c.ReceiveTimeout = o.ReceiveTimeout
	}
	if o.TiltSound != nil {
		c.TiltSound = o.TiltSound
	}
	if o.VibrationSound != nil {
		c.VibrationSound = o.VibrationSound
	}
	return c
}

// Validate checks the values that have no safe fallback.
func (c *SessionConfig) Validate() error {
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"tilt_threshold", c.TiltThreshold},
		{"vibration_threshold", c.VibrationThreshold},
		{"tilt_margin", c.TiltMargin},
		{"vibration_margin", c.VibrationMargin},
		{"smoothing_alpha", c.SmoothingAlpha},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalid, f.name, *f.v)
		}
	}
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be at least 1, got %d", ErrInvalid, *c.WindowSize)
	}
	if c.SmoothingAlpha != nil && (*c.SmoothingAlpha < 0 || *c.SmoothingAlpha >= 1) {
		return fmt.Errorf("%w: smoothing_alpha must be in [0, 1), got %g", ErrInvalid, *c.SmoothingAlpha)
	}
	if c.VibrationUnit != nil {
		if _, ok := units.Parse(*c.VibrationUnit); !ok {
			return fmt.Errorf("%w: vibration_unit %q, want one of %s", ErrInvalid, *c.VibrationUnit, units.GetValidUnitsString())
		}
	}
	if c.Port != nil && (*c.Port < 0 || *c.Port > 65535) {
		return fmt.Errorf("%w: port must be in 0..65535, got %d", ErrInvalid, *c.Port)
	}
	if c.TiltMargin != nil && *c.TiltMargin < 0 {
		return fmt.Errorf("%w: tilt_margin must be non-negative, got %g", ErrInvalid, *c.TiltMargin)
	}
	if c.VibrationMargin != nil && *c.VibrationMargin < 0 {
		return fmt.Errorf("%w: vibration_margin must be non-negative, got %g", ErrInvalid, *c.VibrationMargin)
	}
	if c.ReceiveTimeout != nil && *c.ReceiveTimeout != "" {
		d, err := time.ParseDuration(*c.ReceiveTimeout)
		if err != nil {
			return fmt.Errorf("%w: receive_timeout %q: %v", ErrInvalid, *c.ReceiveTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: receive_timeout must be positive, got %s", ErrInvalid, d)
		}
	}
	return nil
}

// GetTiltThreshold returns the tilt raise threshold in degrees.
func (c *SessionConfig) GetTiltThreshold() float64 {
	if c.TiltThreshold == nil {
		return DefaultTiltThreshold
	}
	return *c.TiltThreshold
}

// GetVibrationThreshold returns the vibration raise threshold, expressed in
// GetVibrationUnit.
func (c *SessionConfig) GetVibrationThreshold() float64 {
	if c.VibrationThreshold == nil {
		return DefaultVibrationThreshold
	}
	return *c.VibrationThreshold
}

// GetVibrationUnit returns the engineering unit of the vibration signal.
func (c *SessionConfig) GetVibrationUnit() units.Accel {
	if c.VibrationUnit == nil {
		return units.G
	}
	u, ok := units.Parse(*c.VibrationUnit)
	if !ok {
		return units.G
	}
	return u
}

// GetTiltMargin returns the tilt hysteresis margin in degrees.
func (c *SessionConfig) GetTiltMargin() float64 {
	if c.TiltMargin == nil {
		return DefaultTiltMargin
	}
	return *c.TiltMargin
}

// GetVibrationMargin returns the vibration hysteresis margin in the active
// unit. The default 0.3 g is converted with standard gravity when the unit
// is m/s².
func (c *SessionConfig) GetVibrationMargin() float64 {
	if c.VibrationMargin == nil {
		return units.FromG(DefaultVibrationMarginG, c.GetVibrationUnit())
	}
	return *c.VibrationMargin
}

// GetWindowSize returns the moving-average window capacity, also the length
// of the calibration phase.
func (c *SessionConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return DefaultWindowSize
	}
	return *c.WindowSize
}

// GetSmoothingAlpha returns the gravity filter smoothing factor.
func (c *SessionConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return DefaultAlpha
	}
	return *c.SmoothingAlpha
}

// GetPort returns the UDP port to bind on all interfaces.
func (c *SessionConfig) GetPort() int {
	if c.Port == nil {
		return DefaultPort
	}
	return *c.Port
}

// GetBufferSize returns the datagram receive buffer size, clamped to
// MinBufferSize..MaxBufferSize.
func (c *SessionConfig) GetBufferSize() int {
	if c.BufferSize == nil {
		return DefaultBufferSize
	}
	return max(MinBufferSize, min(MaxBufferSize, *c.BufferSize))
}

// GetReceiveTimeout returns the per-receive timeout.
func (c *SessionConfig) GetReceiveTimeout() time.Duration {
	if c.ReceiveTimeout == nil || *c.ReceiveTimeout == "" {
		return DefaultReceiveTimeout
	}
	d, err := time.ParseDuration(*c.ReceiveTimeout)
	if err != nil || d <= 0 {
		return DefaultReceiveTimeout
	}
	return d
}

// GetTiltSound returns the sound file played on a tilt alert.
func (c *SessionConfig) GetTiltSound() string {
	if c.TiltSound == nil {
		return DefaultTiltSound
	}
	return *c.TiltSound
}

// GetVibrationSound returns the sound file played on a vibration alert.
func (c *SessionConfig) GetVibrationSound() string {
	if c.VibrationSound == nil {
		return DefaultVibrationSound
	}
	return *c.VibrationSound
}
