// Package formulas holds the physical constants and closed-form expressions shared by the engine modules.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// ReducedPlanck is ħ in J·s
	ReducedPlanck = 1.054571817e-34
	// Boltzmann is k_B in J/K
	Boltzmann = 1.380649e-23
	// PhysiologicalTemperature in kelvin
	PhysiologicalTemperature = 310.0
	// ElectronVolt in joules
	ElectronVolt = 1.602176634e-19
)

// LevelSpacing returns the energy gap ħ·2π·f for a reference frequency f in Hz
func LevelSpacing(frequency float64) float64 {
	return ReducedPlanck * 2 * math.Pi * frequency
}

// BoseOccupation returns 1/(exp(ΔE/(k_B·T)) − 1).
// Returns 0 for non-positive gaps or temperatures.
func BoseOccupation(gap, temperature float64) float64 {
	if gap <= 0 || temperature <= 0 {
		return 0
	}
	x := gap / (Boltzmann * temperature)
	// Expm1 keeps precision when the gap is far below k_B·T
	return 1 / math.Expm1(x)
}

// ThermalRate is the relaxation weight between levels nHi and nLo of an equally spaced ladder.
// Zero when nHi ≤ nLo.
func ThermalRate(nHi, nLo int, spacing, temperature float64) float64 {
	if nHi <= nLo {
		return 0
	}
	return BoseOccupation(float64(nHi-nLo)*spacing, temperature)
}

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Sum returns the sum of data
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}
