// Package units provides shared constants and validation for the frequency
// and duration units accepted on the command line.
package units

import (
	"fmt"
	"strings"
)

// Frequency unit constants
const (
	Hz  = "Hz"
	KHz = "kHz"
	MHz = "MHz"
)

// ValidFrequencyUnits contains all valid frequency unit values
var ValidFrequencyUnits = []string{Hz, KHz, MHz}

// IsValidFrequency checks if the given unit is a valid frequency unit.
// Matching ignores case.
func IsValidFrequency(unit string) bool {
	_, ok := frequencyScale(unit)
	return ok
}

// GetValidFrequencyUnitsString returns a comma-separated string of valid
// frequency units for error messages.
func GetValidFrequencyUnitsString() string {
	return strings.Join(ValidFrequencyUnits, ", ")
}

func frequencyScale(unit string) (float64, bool) {
	switch strings.ToLower(unit) {
	case "hz":
		return 1, true
	case "khz":
		return 1e3, true
	case "mhz":
		return 1e6, true
	}
	return 0, false
}

// ToHz converts a frequency in the given unit to hertz.
func ToHz(value float64, unit string) (float64, error) {
	s, ok := frequencyScale(unit)
	if !ok {
		return 0, fmt.Errorf("unknown frequency unit %q (valid: %s)", unit, GetValidFrequencyUnitsString())
	}
	return value * s, nil
}

// FromHz converts a frequency in hertz to the given unit. Unknown units
// return the value unchanged.
func FromHz(hz float64, unit string) float64 {
	s, ok := frequencyScale(unit)
	if !ok {
		return hz
	}
	return hz / s
}

// Duration scale factors to seconds.
const (
	Microsecond = 1e-6
	Millisecond = 1e-3
)
