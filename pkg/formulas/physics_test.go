package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelSpacing(t *testing.T) {
	assert.InDelta(t, 6.62607015e-34, LevelSpacing(1), 1e-42)
}

func TestBoseOccupation(t *testing.T) {
	tests := []struct {
		name        string
		gap         float64
		temperature float64
		want        float64
	}{
		{"zero gap", 0, 300, 0},
		{"zero temperature", 1e-21, 0, 0},
		{"gap equals kT", Boltzmann * 300, 300, 1 / (math.E - 1)},
		{"gap ln2 kT", math.Ln2 * Boltzmann * 300, 300, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BoseOccupation(tt.gap, tt.temperature), 1e-12)
		})
	}
}

func TestThermalRate(t *testing.T) {
	spacing := Boltzmann * 300

	assert.Zero(t, ThermalRate(1, 1, spacing, 300))
	assert.Zero(t, ThermalRate(0, 1, spacing, 300))
	assert.InDelta(t, 1/(math.E-1), ThermalRate(2, 1, spacing, 300), 1e-12)
	assert.InDelta(t, 1/(math.Exp(2)-1), ThermalRate(3, 1, spacing, 300), 1e-12)
}

func TestMeanAndSum(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.Zero(t, Sum(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-15)
	assert.InDelta(t, 6.0, Sum([]float64{1, 2, 3}), 1e-15)
}
