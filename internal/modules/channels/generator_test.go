package channels

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/substrate"
)

func TestGenerate_Shapes(t *testing.T) {
	gen := NewGenerator(zerolog.Nop())

	for _, st := range substrate.Types() {
		for _, n := range []int{1, 2, 7, 13} {
			ch, err := gen.Generate(st, n)
			require.NoError(t, err)
			assert.Equal(t, n, ch.Dimension(), "%s n=%d", st, n)
			assert.Equal(t, PatternFor(st), ch.Pattern)
			assert.Zero(t, linalg.HermiticityDeviation(ch.Matrix()))
		}
	}
}

func TestGenerate_Microtubule(t *testing.T) {
	ch, err := NewGenerator(zerolog.Nop()).Generate(substrate.Microtubule, 14)
	require.NoError(t, err)
	m := ch.Matrix()

	off, _ := linalg.AbsSums(m)
	assert.Zero(t, off, "diagonal only")
	assert.InDelta(t, baseMagnitude, real(m.At(0, 0)), 1e-15)
	assert.Greater(t, real(m.At(3, 3)), real(m.At(0, 0)))
	assert.Less(t, real(m.At(10, 10)), real(m.At(0, 0)))
	// one full period later the pattern repeats
	assert.InDelta(t, real(m.At(0, 0)), real(m.At(13, 13)), 1e-15)
}

func TestGenerate_PosnerBlocks(t *testing.T) {
	ch, err := NewGenerator(zerolog.Nop()).Generate(substrate.Posner, 14)
	require.NoError(t, err)
	m := ch.Matrix()

	assert.Equal(t, complex(clusterMagnitude, 0), m.At(0, 5))
	assert.Equal(t, complex(clusterMagnitude, 0), m.At(7, 11))
	assert.Zero(t, m.At(5, 6), "blocks do not touch")
	// trailing partial block of size 2
	assert.Equal(t, complex(clusterMagnitude, 0), m.At(12, 13))
	assert.Zero(t, m.At(11, 12))
}

func TestGenerate_TryptophanBand(t *testing.T) {
	ch, err := NewGenerator(zerolog.Nop()).Generate(substrate.Tryptophan, 8)
	require.NoError(t, err)
	m := ch.Matrix()

	assert.InDelta(t, baseMagnitude, real(m.At(2, 2)), 1e-15)
	assert.InDelta(t, baseMagnitude*math.Exp(-3), real(m.At(2, 5)), 1e-15)
	assert.Zero(t, m.At(1, 5))
	assert.Greater(t, real(m.At(4, 5)), real(m.At(4, 6)))
}

func TestGenerate_DefaultUniform(t *testing.T) {
	ch, err := NewGenerator(zerolog.Nop()).Generate(substrate.Default, 3)
	require.NoError(t, err)

	assert.InDelta(t, 3*baseMagnitude, real(linalg.Trace(ch.Matrix())), 1e-15)
	assert.Equal(t, PatternUniformDiagonal, PatternFor(substrate.Type("unspecified")))
}

func TestGenerate_ZeroDimension(t *testing.T) {
	ch, err := NewGenerator(zerolog.Nop()).Generate(substrate.Posner, 0)

	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Zero(t, ch.Dimension())
	assert.True(t, ch.Matrix().IsEmpty())
}

func TestChannel_MatrixIsCopy(t *testing.T) {
	ch, err := NewGenerator(zerolog.Nop()).Generate(substrate.Default, 2)
	require.NoError(t, err)

	m := ch.Matrix()
	m.Set(0, 0, 9)
	assert.InDelta(t, baseMagnitude, real(ch.Matrix().At(0, 0)), 1e-15)
}
