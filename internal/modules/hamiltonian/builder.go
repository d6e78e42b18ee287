// Package hamiltonian builds the Hermitian energy and coupling matrix of the system.
package hamiltonian

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/hilbert"
	"github.com/aristath/coherence/pkg/formulas"
)

// HermiticityTolerance bounds ‖H − H†‖ for externally supplied matrices
const HermiticityTolerance = 1e-10

// Params configures the level ladder and coupling structure
type Params struct {
	ReferenceFrequency   float64 // f₀ in Hz; H[i,i] = i·ħ·2π·f₀
	CouplingFrequency    float64 // nearest-neighbour coupling c = ħ·2π·CouplingFrequency
	LongRangeProbability float64 // chance that a non-adjacent pair (i, j>i+1) is coupled
	LongRangeScale       float64 // long-range magnitudes are drawn from [0, LongRangeScale·c)
	Seed                 uint64
}

// DefaultParams returns the reference configuration
func DefaultParams() Params {
	return Params{
		ReferenceFrequency:   1e7,
		CouplingFrequency:    1e6,
		LongRangeProbability: 0.1,
		LongRangeScale:       0.1,
		Seed:                 42,
	}
}

// Validate checks the parameter ranges
func (p Params) Validate() error {
	switch {
	case p.ReferenceFrequency < 0 || math.IsNaN(p.ReferenceFrequency):
		return domain.NewConfigurationError("reference_frequency", p.ReferenceFrequency, "must be non-negative")
	case p.CouplingFrequency < 0 || math.IsNaN(p.CouplingFrequency):
		return domain.NewConfigurationError("coupling_frequency", p.CouplingFrequency, "must be non-negative")
	case p.LongRangeProbability < 0 || p.LongRangeProbability > 1:
		return domain.NewConfigurationError("long_range_probability", p.LongRangeProbability, "must be within [0, 1]")
	case p.LongRangeScale < 0 || p.LongRangeScale >= 1:
		return domain.NewConfigurationError("long_range_scale", p.LongRangeScale, "must be within [0, 1) so local coupling dominates")
	}
	return nil
}

// Hamiltonian is an immutable Hermitian matrix plus the level spacing it was built with.
type Hamiltonian struct {
	matrix  *mat.CDense
	spacing float64
}

// New wraps an externally supplied matrix. Fails unless m is Hermitian.
// spacing is the energy gap between adjacent levels in joules, used for thermal rates.
func New(m *mat.CDense, spacing float64) (*Hamiltonian, error) {
	if _, ok := linalg.Square(m); !ok {
		r, c := 0, 0
		if m != nil && !m.IsEmpty() {
			r, c = m.Dims()
		}
		return nil, domain.NewDimensionMismatchError("hamiltonian", r, r, c)
	}
	if dev := linalg.HermiticityDeviation(m); dev > HermiticityTolerance {
		return nil, domain.NewConfigurationError("hamiltonian", dev, "matrix is not Hermitian")
	}
	return &Hamiltonian{matrix: linalg.Clone(m), spacing: spacing}, nil
}

// Matrix returns a copy of H
func (h *Hamiltonian) Matrix() *mat.CDense {
	return linalg.Clone(h.matrix)
}

// At returns H[i,j]
func (h *Hamiltonian) At(i, j int) complex128 {
	return h.matrix.At(i, j)
}

// Dimension returns n
func (h *Hamiltonian) Dimension() int {
	n, _ := h.matrix.Dims()
	return n
}

// LevelSpacing returns the energy gap between adjacent diagonal levels in joules
func (h *Hamiltonian) LevelSpacing() float64 {
	return h.spacing
}

// Builder produces Hamiltonians for a Hilbert space
type Builder struct {
	params Params
	log    zerolog.Logger
}

// NewBuilder creates a new Hamiltonian builder
func NewBuilder(params Params, log zerolog.Logger) *Builder {
	return &Builder{
		params: params,
		log:    log.With().Str("component", "hamiltonian_builder").Logger(),
	}
}

// Build assembles H = Σ i·ΔE |i⟩⟨i| + c Σ (|i⟩⟨i+1| + h.c.) + sparse long-range couplings.
// Each long-range entry is sampled once and mirrored as its conjugate, so H is Hermitian exactly.
func (b *Builder) Build(space *hilbert.Space) (*Hamiltonian, error) {
	if err := b.params.Validate(); err != nil {
		return nil, err
	}

	n := space.Dimension()
	spacing := formulas.LevelSpacing(b.params.ReferenceFrequency)
	coupling := formulas.LevelSpacing(b.params.CouplingFrequency)
	rng := rand.New(rand.NewPCG(b.params.Seed, b.params.Seed^0x9e3779b97f4a7c15))

	h := linalg.New(n)
	for i := 0; i < n; i++ {
		h.Set(i, i, complex(float64(i)*spacing, 0))
		if i+1 < n {
			h.Set(i, i+1, complex(coupling, 0))
			h.Set(i+1, i, complex(coupling, 0))
		}
	}

	longRange := 0
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if rng.Float64() >= b.params.LongRangeProbability {
				continue
			}
			magnitude := coupling * b.params.LongRangeScale * rng.Float64()
			v := cmplx.Rect(magnitude, 2*math.Pi*rng.Float64())
			h.Set(i, j, v)
			h.Set(j, i, cmplx.Conj(v))
			longRange++
		}
	}

	b.log.Debug().
		Int("dimension", n).
		Float64("level_spacing_j", spacing).
		Int("long_range_couplings", longRange).
		Msg("Built Hamiltonian")

	return &Hamiltonian{matrix: h, spacing: spacing}, nil
}
