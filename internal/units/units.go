// Package units provides shared constants and validation for acceleration units
package units

import "strings"

// StandardGravity is the acceleration of free fall used throughout, in m/s².
const StandardGravity = 9.81

// Accel names the engineering unit a vibration value is expressed in.
type Accel string

// Unit constants
const (
	G    Accel = "g"
	MPS2 Accel = "mps2"
)

// ValidUnits contains all valid unit values
var ValidUnits = []Accel{G, MPS2}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit Accel) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	names := make([]string, len(ValidUnits))
	for i, u := range ValidUnits {
		names[i] = string(u)
	}
	return strings.Join(names, ", ")
}

// Parse maps user spellings ("g", "m/s2", "m/s²", "mps2", "ms2") onto a unit.
func Parse(s string) (Accel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "g", "":
		return G, true
	case "mps2", "m/s2", "m/s²", "ms2", "m/s^2":
		return MPS2, true
	}
	return "", false
}

// FromG converts a value in g into the target unit. Unknown units are
// treated as g.
func FromG(v float64, target Accel) float64 {
	if target == MPS2 {
		return v * StandardGravity
	}
	return v
}

// Symbol returns the display symbol for the unit.
func (a Accel) Symbol() string {
	if a == MPS2 {
		return "m/s²"
	}
	return "g"
}
