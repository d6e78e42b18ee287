package linalg

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrEigenFailed is returned when the symmetric eigen-solver does not converge.
var ErrEigenFailed = errors.New("linalg: hermitian eigendecomposition failed")

// embed maps the Hermitian part of h = A + iB onto the real symmetric matrix
//
//	[ A  -B ]
//	[ B   A ]
//
// The map is an algebra homomorphism: every eigenvalue of h appears twice in the
// embedding, and f(embed(h)) = embed(f(h)) for any real function f.
func embed(h *mat.CDense) *mat.SymDense {
	n, _ := h.Dims()
	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (h.At(i, j) + conj(h.At(j, i))) / 2
			a, b := real(v), imag(v)
			sym.SetSym(i, j, a)
			sym.SetSym(n+i, n+j, a)
			// Lower-left block holds B; upper-right is its transpose -B.
			sym.SetSym(n+i, j, b)
			if i != j {
				sym.SetSym(n+j, i, -b)
			}
		}
	}
	return sym
}

func conj(v complex128) complex128 {
	return complex(real(v), -imag(v))
}

// HermitianEigenvalues returns the eigenvalues of the Hermitian part of h in ascending order.
func HermitianEigenvalues(h *mat.CDense) ([]float64, error) {
	n, ok := Square(h)
	if !ok {
		return nil, errors.New("linalg: eigenvalues need a non-empty square matrix")
	}
	var es mat.EigenSym
	if !es.Factorize(embed(h), false) {
		return nil, ErrEigenFailed
	}
	doubled := es.Values(nil)
	values := make([]float64, n)
	for k := 0; k < n; k++ {
		values[k] = (doubled[2*k] + doubled[2*k+1]) / 2
	}
	return values, nil
}

// HermitianFunc returns f(h) computed through the eigendecomposition of the Hermitian part of h.
func HermitianFunc(h *mat.CDense, f func(float64) float64) (*mat.CDense, error) {
	n, ok := Square(h)
	if !ok {
		return nil, errors.New("linalg: matrix function needs a non-empty square matrix")
	}
	var es mat.EigenSym
	if !es.Factorize(embed(h), true) {
		return nil, ErrEigenFailed
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	weights := make([]float64, len(values))
	for k, v := range values {
		weights[k] = f(v)
	}

	// f(h) = F_A + i F_B where F_A is the top-left block of f(embedding) and F_B the bottom-left.
	out := New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var re, im float64
			for k, w := range weights {
				if w == 0 {
					continue
				}
				vj := vecs.At(j, k)
				re += w * vecs.At(i, k) * vj
				im += w * vecs.At(n+i, k) * vj
			}
			out.Set(i, j, complex(re, im))
		}
	}
	return out, nil
}
