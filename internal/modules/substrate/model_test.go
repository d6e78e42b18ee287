package substrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/domain"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  Type
	}{
		{"", Default},
		{"default", Default},
		{"Microtubule", Microtubule},
		{" tubulin ", Microtubule},
		{"posner_molecule", Posner},
		{"aromatic", Tryptophan},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseType_Unknown(t *testing.T) {
	_, err := ParseType("quartz")
	assert.True(t, errors.Is(err, domain.ErrUnknownSubstrate))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestTypes_Stable(t *testing.T) {
	assert.Equal(t, []Type{Default, Microtubule, Posner, Tryptophan}, Types())
}

func TestNewModel_Summaries(t *testing.T) {
	tests := []struct {
		substrate Type
		count     int
		meanT2    float64
		gate      float64
	}{
		{Microtubule, 13, 1e-13, 0.90},
		{Posner, 6, 1.0, 0.99},
		{Tryptophan, 8, 1e-12, 0.80},
		{Default, 4, 1e-7, 0.95},
	}

	for _, tt := range tests {
		t.Run(string(tt.substrate), func(t *testing.T) {
			model, err := NewModel(tt.substrate)
			require.NoError(t, err)

			summary := model.Summary()
			assert.Equal(t, tt.substrate, summary.Substrate)
			assert.Equal(t, tt.count, summary.QubitCount)
			assert.InDelta(t, tt.meanT2, summary.MeanT2, tt.meanT2*1e-9)
			assert.InDelta(t, tt.gate, summary.MeanGateFidelity, 1e-12)
			assert.GreaterOrEqual(t, summary.TotalMetabolicRate, 0.0)
		})
	}
}

func TestNewModel_Unknown(t *testing.T) {
	_, err := NewModel(Type("quartz"))
	assert.True(t, errors.Is(err, domain.ErrUnknownSubstrate))
}

func TestModel_QubitsAreCopies(t *testing.T) {
	model, err := NewModel(Posner)
	require.NoError(t, err)

	qubits := model.Qubits()
	qubits[0].T2 = 99
	qubits[0].EnergyLevels[1] = 99

	fresh := model.Qubits()
	assert.Equal(t, 1.0, fresh[0].T2)
	assert.NotEqual(t, 99.0, fresh[0].EnergyLevels[1])
}

func TestModel_PositionsDistinct(t *testing.T) {
	for _, st := range Types() {
		model, err := NewModel(st)
		require.NoError(t, err)

		seen := map[[3]float64]bool{}
		for _, q := range model.Qubits() {
			assert.False(t, seen[q.Position], "%s qubit %d shares a position", st, q.ID)
			seen[q.Position] = true
		}
	}
}
