// Package hilbert declares the finite-dimensional state space every other component is checked against.
package hilbert

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
)

// MinDimension is the smallest supported Hilbert space
const MinDimension = 2

// Space is an immutable n-dimensional Hilbert space with the standard orthonormal basis.
type Space struct {
	dimension int
	basis     [][]complex128
}

// New creates a Hilbert space of the given dimension.
// Fails with a ConfigurationError if dimension < 2.
func New(dimension int) (*Space, error) {
	if dimension < MinDimension {
		return nil, domain.NewConfigurationError("dimension", dimension, "must be at least 2")
	}

	basis := make([][]complex128, dimension)
	for i := range basis {
		basis[i] = make([]complex128, dimension)
		basis[i][i] = 1
	}

	return &Space{dimension: dimension, basis: basis}, nil
}

// Dimension returns n
func (s *Space) Dimension() int {
	return s.dimension
}

// BasisState returns a copy of the i-th basis vector |i⟩.
func (s *Space) BasisState(i int) []complex128 {
	out := make([]complex128, s.dimension)
	copy(out, s.basis[i])
	return out
}

// Basis returns copies of all basis vectors in order
func (s *Space) Basis() [][]complex128 {
	out := make([][]complex128, s.dimension)
	for i := range out {
		out[i] = s.BasisState(i)
	}
	return out
}

// Check fails with a DimensionMismatchError unless m is n×n for this space.
func (s *Space) Check(context string, m *mat.CDense) error {
	return linalg.CheckShape(context, m, s.dimension)
}

// IsPerfectSquare reports whether n = k² and returns k. Bipartite k⊗k diagnostics rely on it.
func (s *Space) IsPerfectSquare() (int, bool) {
	return PerfectSquareRoot(s.dimension)
}

// PerfectSquareRoot returns k with k² = n, if one exists.
func PerfectSquareRoot(n int) (int, bool) {
	if n < 1 {
		return 0, false
	}
	k := int(math.Round(math.Sqrt(float64(n))))
	return k, k*k == n
}

// Orthonormal reports whether the basis vectors are unit-norm and mutually orthogonal within tol.
func (s *Space) Orthonormal(tol float64) bool {
	for i, u := range s.basis {
		if len(u) != s.dimension {
			return false
		}
		for j, v := range s.basis {
			var inner complex128
			for k := range u {
				inner += cmplx.Conj(u[k]) * v[k]
			}
			want := complex128(0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(inner-want) > tol {
				return false
			}
		}
	}
	return true
}

// Projector returns |i⟩⟨i|
func (s *Space) Projector(i int) *mat.CDense {
	p := linalg.New(s.dimension)
	p.Set(i, i, 1)
	return p
}

// PureState returns the density matrix |ψ⟩⟨ψ| of a normalised copy of psi.
func (s *Space) PureState(psi []complex128) (*mat.CDense, error) {
	if len(psi) != s.dimension {
		return nil, domain.NewDimensionMismatchError("state vector", s.dimension, len(psi), 1)
	}
	var norm float64
	for _, v := range psi {
		norm += real(v)*real(v) + imag(v)*imag(v)
	}
	if norm == 0 {
		return nil, domain.NewConfigurationError("state vector", "zero", "cannot normalise the zero vector")
	}
	scale := 1 / math.Sqrt(norm)

	rho := linalg.New(s.dimension)
	for i := range psi {
		for j := range psi {
			rho.Set(i, j, complex(scale*scale, 0)*psi[i]*cmplx.Conj(psi[j]))
		}
	}
	return rho, nil
}

// MaximallyMixed returns I/n
func (s *Space) MaximallyMixed() *mat.CDense {
	rho := linalg.Identity(s.dimension)
	linalg.ScaleInPlace(complex(1/float64(s.dimension), 0), rho)
	return rho
}
