package hilbert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
)

func TestNew_RejectsSmallDimensions(t *testing.T) {
	for _, dim := range []int{-3, 0, 1} {
		_, err := New(dim)
		assert.True(t, errors.Is(err, domain.ErrConfiguration), "dimension %d", dim)
	}
}

func TestNew_StandardBasis(t *testing.T) {
	space, err := New(5)
	require.NoError(t, err)

	assert.Equal(t, 5, space.Dimension())
	basis := space.Basis()
	require.Len(t, basis, 5)
	for i, v := range basis {
		require.Len(t, v, 5)
		assert.Equal(t, complex128(1), v[i])
	}
	assert.True(t, space.Orthonormal(1e-12))

	// Returned vectors are copies
	basis[0][0] = 7
	assert.Equal(t, complex128(1), space.BasisState(0)[0])
}

func TestSpace_Check(t *testing.T) {
	space, err := New(3)
	require.NoError(t, err)

	assert.NoError(t, space.Check("operator", linalg.New(3)))
	assert.True(t, errors.Is(space.Check("operator", linalg.New(4)), domain.ErrDimensionMismatch))
}

func TestPerfectSquareRoot(t *testing.T) {
	tests := []struct {
		n      int
		k      int
		square bool
	}{
		{4, 2, true},
		{9, 3, true},
		{16, 4, true},
		{2, 0, false},
		{6, 0, false},
		{8, 0, false},
	}
	for _, tt := range tests {
		k, ok := PerfectSquareRoot(tt.n)
		assert.Equal(t, tt.square, ok, "n=%d", tt.n)
		if tt.square {
			assert.Equal(t, tt.k, k)
		}
	}
}

func TestPureState(t *testing.T) {
	space, err := New(2)
	require.NoError(t, err)

	rho, err := space.PureState([]complex128{1, 1})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0.5, real(rho.At(i, j)), 1e-15)
		}
	}

	_, err = space.PureState([]complex128{0, 0})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = space.PureState([]complex128{1})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestMaximallyMixed(t *testing.T) {
	space, err := New(4)
	require.NoError(t, err)

	rho := space.MaximallyMixed()
	assert.InDelta(t, 1.0, real(linalg.Trace(rho)), 1e-15)
	assert.Equal(t, complex128(0.25), rho.At(2, 2))
	assert.Equal(t, complex128(1), space.Projector(3).At(3, 3))
}
