// Package units provides shared constants and validation for the unit
// systems a scene may be delivered in.
package units

import "strings"

// Unit system constants. Heights, cell sizes and height thresholds are all
// expressed in the scene's unit system.
const (
	Meters = "Meters"
	Feet   = "Feet"
)

// ValidUnits contains all valid unit systems
var ValidUnits = []string{Meters, Feet}

// FeetPerMeter is the length conversion used throughout the pipeline.
const FeetPerMeter = 3.28084

// GroundHeightMeters separates ground from non-ground surfaces (2 ft).
const GroundHeightMeters = 0.6096

// Burn-metric unit scalars applied to raw simulator outputs.
const (
	FireLineIntensityScalar = 0.288894658
	FlameLengthScalar       = 1.0
	SpreadRateScalar        = FeetPerMeter
)

// IsValid checks if the given unit system is supported. Matching is exact.
func IsValid(system string) bool {
	for _, u := range ValidUnits {
		if system == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid unit systems for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Normalize maps common spellings ("m", "meters", "ft", "feet") onto the
// canonical unit system names. Unknown values are returned unchanged.
func Normalize(system string) string {
	switch strings.ToLower(strings.TrimSpace(system)) {
	case "m", "meter", "meters", "metre", "metres":
		return Meters
	case "ft", "foot", "feet":
		return Feet
	default:
		return system
	}
}

// ConvertLength converts a length between unit systems. Unknown systems are
// treated as meters.
func ConvertLength(v float64, from, to string) float64 {
	if from == to {
		return v
	}
	if to == Feet {
		return v * FeetPerMeter
	}
	if from == Feet {
		return v / FeetPerMeter
	}
	return v
}

// GroundHeight returns the ground/non-ground split height in system.
func GroundHeight(system string) float64 {
	return ConvertLength(GroundHeightMeters, Meters, system)
}
