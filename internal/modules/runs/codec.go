package runs

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/linalg"
)

// densityBlob is the msgpack layout of a stored density matrix, row-major
type densityBlob struct {
	Dimension int       `msgpack:"n"`
	Real      []float64 `msgpack:"re"`
	Imag      []float64 `msgpack:"im"`
}

// EncodeDensity serialises a square complex matrix
func EncodeDensity(rho *mat.CDense) ([]byte, error) {
	n, ok := linalg.Square(rho)
	if !ok {
		return nil, fmt.Errorf("encode density matrix: not square")
	}
	blob := densityBlob{Dimension: n, Real: make([]float64, n*n), Imag: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := rho.At(i, j)
			blob.Real[i*n+j] = real(v)
			blob.Imag[i*n+j] = imag(v)
		}
	}
	data, err := msgpack.Marshal(&blob)
	if err != nil {
		return nil, fmt.Errorf("encode density matrix: %w", err)
	}
	return data, nil
}

// DecodeDensity restores a matrix written by EncodeDensity
func DecodeDensity(data []byte) (*mat.CDense, error) {
	var blob densityBlob
	if err := msgpack.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decode density matrix: %w", err)
	}
	n := blob.Dimension
	if n < 1 || len(blob.Real) != n*n || len(blob.Imag) != n*n {
		return nil, fmt.Errorf("decode density matrix: corrupt blob for dimension %d", n)
	}
	rho := linalg.New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rho.Set(i, j, complex(blob.Real[i*n+j], blob.Imag[i*n+j]))
		}
	}
	return rho, nil
}
