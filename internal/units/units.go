// Package units provides shared constants and conversion for strike speed
// units. Speeds are stored in pixels per second; physical units require a
// pixels-per-meter camera calibration.
package units

// Unit constants
const (
	PXPS = "pxps"
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{PXPS, MPS, MPH, KMPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "pxps, mps, mph, kmph"
}

// ConvertSpeed converts a stored pixels/sec speed to the target units.
// Without a positive pxPerMeter calibration every physical unit falls back
// to the raw pixel speed, so an uncalibrated rig still reports something.
func ConvertSpeed(speedPxPS float64, targetUnits string, pxPerMeter float64) float64 {
	if targetUnits == PXPS || pxPerMeter <= 0 {
		return speedPxPS
	}
	mps := speedPxPS / pxPerMeter
	switch targetUnits {
	case MPS:
		return mps
	case MPH:
		return mps * 2.23694 // m/s to mph
	case KMPH:
		return mps * 3.6 // m/s to km/h
	default:
		return speedPxPS // unknown unit, keep raw pixels
	}
}
