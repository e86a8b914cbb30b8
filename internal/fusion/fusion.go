// Package fusion turns raw accelerometer readings into the two structural
// signals: tilt (from a low-pass gravity estimate) and vibration (from the
// raw acceleration magnitude).
package fusion

import (
	"math"

	"github.com/banshee-data/riggy/internal/units"
)

// DefaultAlpha is the default smoothing factor of the gravity filter.
const DefaultAlpha = 0.9

// Vec3 is a 3D vector in the sensor frame.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Upright is standard gravity along +Z, the estimate at session start.
var Upright = Vec3{Z: units.StandardGravity}

// GravityEstimator is a one-pole low-pass filter over accelerometer samples.
// Slow orientation changes pass through; vibration transients are damped.
type GravityEstimator struct {
	alpha float64
	g     Vec3
}

// NewGravityEstimator creates an estimator seeded with Upright. alpha is the
// weight kept from the previous estimate on each update.
func NewGravityEstimator(alpha float64) *GravityEstimator {
	return &GravityEstimator{alpha: alpha, g: Upright}
}

// Update folds one sample into the estimate and returns the new estimate.
func (e *GravityEstimator) Update(a Vec3) Vec3 {
	k := 1 - e.alpha
	e.g.X = e.alpha*e.g.X + k*a.X
	e.g.Y = e.alpha*e.g.Y + k*a.Y
	e.g.Z = e.alpha*e.g.Z + k*a.Z
	return e.g
}

// Gravity returns the current estimate.
func (e *GravityEstimator) Gravity() Vec3 { return e.g }

// Alpha returns the smoothing factor.
func (e *GravityEstimator) Alpha() float64 { return e.alpha }

// Reset restores the Upright seed.
func (e *GravityEstimator) Reset() { e.g = Upright }

// Tilt returns the angle in degrees between the gravity estimate and the
// sensor Z axis, in [0, 180]. A zero vector is treated as upright.
func Tilt(g Vec3) float64 {
	cos := 1.0
	if mag := g.Norm(); mag > 0 {
		cos = g.Z / mag
	}
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Vibration returns |‖a‖ − g|, the deviation of the raw acceleration
// magnitude from standard gravity, in g.
func Vibration(a Vec3) float64 {
	return math.Abs(a.Norm() - units.StandardGravity)
}

// VibrationIn returns Vibration expressed in the given unit.
func VibrationIn(a Vec3, unit units.Accel) float64 {
	return units.FromG(Vibration(a), unit)
}
