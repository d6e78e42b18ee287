// Package linalg provides the complex dense-matrix operations the engine needs on top of gonum.
//
// Storage is always *mat.CDense. Products go through blas/cblas128 (gonum's native Zgemm);
// element-wise work walks the raw row-major backing slice with its stride.
package linalg

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
)

// New returns an n×n zero matrix
func New(n int) *mat.CDense {
	return mat.NewCDense(n, n, nil)
}

// Identity returns the n×n identity matrix
func Identity(n int) *mat.CDense {
	m := New(n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Diagonal returns a square matrix with the given diagonal
func Diagonal(diag []complex128) *mat.CDense {
	m := New(len(diag))
	for i, v := range diag {
		m.Set(i, i, v)
	}
	return m
}

// FromRows builds a square matrix from row slices.
func FromRows(rows [][]complex128) (*mat.CDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, domain.NewConfigurationError("rows", 0, "matrix must have at least one row")
	}
	data := make([]complex128, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, domain.NewDimensionMismatchError("row", n, i+1, len(row))
		}
		data = append(data, row...)
	}
	return mat.NewCDense(n, n, data), nil
}

// Rows copies a matrix into row slices
func Rows(a *mat.CDense) [][]complex128 {
	r, c := a.Dims()
	out := make([][]complex128, r)
	for i := 0; i < r; i++ {
		out[i] = make([]complex128, c)
		for j := 0; j < c; j++ {
			out[i][j] = a.At(i, j)
		}
	}
	return out
}

// Clone returns a deep copy of a
func Clone(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	raw := a.RawCMatrix()
	data := make([]complex128, r*c)
	for i := 0; i < r; i++ {
		copy(data[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
	}
	return mat.NewCDense(r, c, data)
}

// CopyInto overwrites dst with src. Shapes must match.
func CopyInto(dst, src *mat.CDense) {
	r, c := src.Dims()
	d, s := dst.RawCMatrix(), src.RawCMatrix()
	for i := 0; i < r; i++ {
		copy(d.Data[i*d.Stride:i*d.Stride+c], s.Data[i*s.Stride:i*s.Stride+c])
	}
}

// Square returns the dimension of a square matrix and false otherwise.
func Square(a *mat.CDense) (int, bool) {
	if a == nil || a.IsEmpty() {
		return 0, false
	}
	r, c := a.Dims()
	return r, r == c
}

// CheckShape fails with a DimensionMismatchError unless a is n×n.
func CheckShape(context string, a *mat.CDense, n int) error {
	if a == nil || a.IsEmpty() {
		return domain.NewDimensionMismatchError(context, n, 0, 0)
	}
	r, c := a.Dims()
	if r != n || c != n {
		return domain.NewDimensionMismatchError(context, n, r, c)
	}
	return nil
}

// Gemm computes dst = alpha·op(a)·op(b) + beta·dst. dst must not alias a or b.
func Gemm(dst *mat.CDense, tA blas.Transpose, a *mat.CDense, tB blas.Transpose, b *mat.CDense, alpha, beta complex128) {
	cblas128.Gemm(tA, tB, alpha, a.RawCMatrix(), b.RawCMatrix(), beta, dst.RawCMatrix())
}

// Mul returns a·b
func Mul(a, b *mat.CDense) *mat.CDense {
	r, _ := a.Dims()
	_, c := b.Dims()
	dst := mat.NewCDense(r, c, nil)
	Gemm(dst, blas.NoTrans, a, blas.NoTrans, b, 1, 0)
	return dst
}

// MulH returns a·b†
func MulH(a, b *mat.CDense) *mat.CDense {
	r, _ := a.Dims()
	c, _ := b.Dims()
	dst := mat.NewCDense(r, c, nil)
	Gemm(dst, blas.NoTrans, a, blas.ConjTrans, b, 1, 0)
	return dst
}

// HMul returns a†·b
func HMul(a, b *mat.CDense) *mat.CDense {
	_, r := a.Dims()
	_, c := b.Dims()
	dst := mat.NewCDense(r, c, nil)
	Gemm(dst, blas.ConjTrans, a, blas.NoTrans, b, 1, 0)
	return dst
}

// Adjoint returns the conjugate transpose of a
func Adjoint(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	dst := mat.NewCDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(j, i, cmplx.Conj(a.At(i, j)))
		}
	}
	return dst
}

// AddScaledInto computes dst = a + alpha·b element-wise. dst may alias a.
func AddScaledInto(dst, a *mat.CDense, alpha complex128, b *mat.CDense) {
	r, c := a.Dims()
	d, ra, rb := dst.RawCMatrix(), a.RawCMatrix(), b.RawCMatrix()
	for i := 0; i < r; i++ {
		drow := d.Data[i*d.Stride : i*d.Stride+c]
		arow := ra.Data[i*ra.Stride : i*ra.Stride+c]
		brow := rb.Data[i*rb.Stride : i*rb.Stride+c]
		for j := range drow {
			drow[j] = arow[j] + alpha*brow[j]
		}
	}
}

// Add returns a + b
func Add(a, b *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	dst := mat.NewCDense(r, c, nil)
	AddScaledInto(dst, a, 1, b)
	return dst
}

// Sub returns a − b
func Sub(a, b *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	dst := mat.NewCDense(r, c, nil)
	AddScaledInto(dst, a, -1, b)
	return dst
}

// ScaleInPlace multiplies every entry of a by alpha
func ScaleInPlace(alpha complex128, a *mat.CDense) {
	r, c := a.Dims()
	raw := a.RawCMatrix()
	for i := 0; i < r; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+c]
		for j := range row {
			row[j] *= alpha
		}
	}
}

// Scale returns alpha·a
func Scale(alpha complex128, a *mat.CDense) *mat.CDense {
	dst := Clone(a)
	ScaleInPlace(alpha, dst)
	return dst
}

// Commutator returns [a, b] = ab − ba
func Commutator(a, b *mat.CDense) *mat.CDense {
	dst := Mul(a, b)
	Gemm(dst, blas.NoTrans, b, blas.NoTrans, a, -1, 1)
	return dst
}

// AntiCommutator returns {a, b} = ab + ba
func AntiCommutator(a, b *mat.CDense) *mat.CDense {
	dst := Mul(a, b)
	Gemm(dst, blas.NoTrans, b, blas.NoTrans, a, 1, 1)
	return dst
}

// Trace returns the sum of the diagonal
func Trace(a *mat.CDense) complex128 {
	r, c := a.Dims()
	n := r
	if c < n {
		n = c
	}
	var tr complex128
	for i := 0; i < n; i++ {
		tr += a.At(i, i)
	}
	return tr
}

// FrobeniusNorm returns sqrt(Σ|aᵢⱼ|²)
func FrobeniusNorm(a *mat.CDense) float64 {
	r, c := a.Dims()
	raw := a.RawCMatrix()
	var sum float64
	for i := 0; i < r; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+c] {
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum)
}

// HermiticityDeviation returns ‖a − a†‖ in the Frobenius norm.
func HermiticityDeviation(a *mat.CDense) float64 {
	n, _ := a.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := a.At(i, j) - cmplx.Conj(a.At(j, i))
			sum += real(d)*real(d) + imag(d)*imag(d)
		}
	}
	return math.Sqrt(sum)
}

// IsFinite reports whether every entry is free of NaN and Inf
func IsFinite(a *mat.CDense) bool {
	r, c := a.Dims()
	raw := a.RawCMatrix()
	for i := 0; i < r; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+c] {
			if cmplx.IsNaN(v) || cmplx.IsInf(v) {
				return false
			}
		}
	}
	return true
}

// AbsSums returns the l1 sums of |aᵢⱼ| over the off-diagonal entries and over all entries.
func AbsSums(a *mat.CDense) (offDiagonal, total float64) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := cmplx.Abs(a.At(i, j))
			total += v
			if i != j {
				offDiagonal += v
			}
		}
	}
	return offDiagonal, total
}

// PartialTranspose transposes the second factor of a k⊗k bipartite matrix:
// out[(a,b),(c,d)] = in[(a,d),(c,b)] with composite index a·k+b.
func PartialTranspose(rho *mat.CDense, k int) (*mat.CDense, error) {
	if err := CheckShape("partial transpose", rho, k*k); err != nil {
		return nil, err
	}
	n := k * k
	out := New(n)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			for c := 0; c < k; c++ {
				for d := 0; d < k; d++ {
					out.Set(a*k+b, c*k+d, rho.At(a*k+d, c*k+b))
				}
			}
		}
	}
	return out, nil
}

// EqualApprox reports whether a and b have the same shape and every entry differs by at most tol.
func EqualApprox(a, b *mat.CDense, tol float64) bool {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return false
	}
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			if cmplx.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}
