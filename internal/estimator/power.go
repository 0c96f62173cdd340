package estimator

import "math"

// Default electrical parameters.
const (
	DefaultVoltage     = 400.0
	DefaultPowerFactor = 0.95
)

// ThreePhasePower returns the estimated power in watts for an unbalanced
// three-phase load: (V/√3) × (I1+I2+I3) × pf.
//
// Non-finite currents count as zero for their phase. A non-positive voltage or
// power factor falls back to the defaults.
func ThreePhasePower(currents [3]float64, voltage, powerFactor float64) float64 {
	if !finite(voltage) || voltage <= 0 {
		voltage = DefaultVoltage
	}
	if !finite(powerFactor) || powerFactor <= 0 {
		powerFactor = DefaultPowerFactor
	}

	var sum float64
	for _, c := range currents {
		if finite(c) {
			sum += c
		}
	}

	return voltage / math.Sqrt(3) * sum * powerFactor
}

// AnyValidCurrent reports whether at least one current is a finite number.
func AnyValidCurrent(currents [3]float64) bool {
	for _, c := range currents {
		if finite(c) {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
