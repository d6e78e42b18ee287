// Package lindblad produces the (operator, rate) pairs that make up the dissipative part of the evolution.
package lindblad

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/hamiltonian"
	"github.com/aristath/coherence/internal/modules/hilbert"
	"github.com/aristath/coherence/pkg/formulas"
)

// Family identifies which channel an operator belongs to
type Family string

const (
	FamilyAmplitudeDamping Family = "amplitude_damping"
	FamilyPhaseDamping     Family = "phase_damping"
	FamilyLocalNoise       Family = "local_noise"
	// FamilyChannel marks substrate decoherence channels appended as extra dissipators.
	FamilyChannel Family = "channel"
)

// Operator is a jump operator L with its non-negative rate γ.
// L need not be Hermitian or unitary. Treat Matrix as read-only once built.
type Operator struct {
	Matrix *mat.CDense
	Rate   float64
	Family Family
	// Index is the basis index (or lower index of the adjacent pair) the operator was built for.
	Index int
}

// NewOperator validates and wraps a jump operator
func NewOperator(m *mat.CDense, rate float64, family Family, index int) (Operator, error) {
	if _, ok := linalg.Square(m); !ok {
		return Operator{}, domain.NewConfigurationError("lindblad_operator", family, "matrix must be square and non-empty")
	}
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Operator{}, domain.NewConfigurationError("rate", rate, "must be finite and non-negative")
	}
	return Operator{Matrix: m, Rate: rate, Family: family, Index: index}, nil
}

// Rates returns γ for every operator in order
func Rates(ops []Operator) []float64 {
	rates := make([]float64, len(ops))
	for i, op := range ops {
		rates[i] = op.Rate
	}
	return rates
}

// MeanRate returns the mean γ, or 0 when there are no operators
func MeanRate(ops []Operator) float64 {
	return formulas.Mean(Rates(ops))
}

// Params configures the three operator families
type Params struct {
	Temperature          float64 // operating temperature in K, sets thermal relaxation weights
	AmplitudeDampingRate float64 // base decoherence rate γ for relaxation operators
	DephasingRate        float64 // γ for phase damping, larger than the base rate
	NoiseRate            float64 // γ for local noise, smaller than the base rate
	NoiseOperators       int     // at most this many noise operators, one per leading basis index
	NoiseDensity         float64 // probability that an entry of a noise row is non-zero
	Seed                 uint64
}

// DefaultParams returns the reference configuration
func DefaultParams() Params {
	return Params{
		Temperature:          formulas.PhysiologicalTemperature,
		AmplitudeDampingRate: 1e3,
		DephasingRate:        1e4,
		NoiseRate:            1e2,
		NoiseOperators:       10,
		NoiseDensity:         0.3,
		Seed:                 42,
	}
}

// Validate checks the parameter ranges
func (p Params) Validate() error {
	switch {
	case p.Temperature <= 0:
		return domain.NewConfigurationError("temperature", p.Temperature, "must be positive")
	case p.AmplitudeDampingRate < 0, p.DephasingRate < 0, p.NoiseRate < 0:
		return domain.NewConfigurationError("rates", []float64{p.AmplitudeDampingRate, p.DephasingRate, p.NoiseRate}, "must be non-negative")
	case p.NoiseOperators < 0:
		return domain.NewConfigurationError("noise_operators", p.NoiseOperators, "must be non-negative")
	case p.NoiseDensity < 0 || p.NoiseDensity > 1:
		return domain.NewConfigurationError("noise_density", p.NoiseDensity, "must be within [0, 1]")
	}
	return nil
}

// Factory builds jump operators
type Factory struct {
	params Params
	log    zerolog.Logger
}

// NewFactory creates a new Lindblad operator factory
func NewFactory(params Params, log zerolog.Logger) *Factory {
	return &Factory{
		params: params,
		log:    log.With().Str("component", "lindblad_factory").Logger(),
	}
}

// Build returns amplitude-damping, then phase-damping, then local-noise operators.
// The order is the integrator's iteration order and carries no physical meaning.
func (f *Factory) Build(space *hilbert.Space, h *hamiltonian.Hamiltonian) ([]Operator, error) {
	if err := f.params.Validate(); err != nil {
		return nil, err
	}
	if h.Dimension() != space.Dimension() {
		return nil, domain.NewDimensionMismatchError("hamiltonian", space.Dimension(), h.Dimension(), h.Dimension())
	}

	ops := make([]Operator, 0, 3*space.Dimension())
	ops = append(ops, f.amplitudeDamping(space, h.LevelSpacing())...)
	ops = append(ops, f.phaseDamping(space)...)
	ops = append(ops, f.localNoise(space)...)

	f.log.Debug().
		Int("dimension", space.Dimension()).
		Int("operators", len(ops)).
		Float64("mean_rate", MeanRate(ops)).
		Msg("Built Lindblad operators")

	return ops, nil
}

// amplitudeDamping lowers |i+1⟩ → |i⟩ with weight sqrt(thermalRate(i+1, i)).
func (f *Factory) amplitudeDamping(space *hilbert.Space, spacing float64) []Operator {
	n := space.Dimension()
	ops := make([]Operator, 0, n-1)
	for i := 0; i+1 < n; i++ {
		l := linalg.New(n)
		weight := formulas.ThermalRate(i+1, i, spacing, f.params.Temperature)
		l.Set(i, i+1, complex(math.Sqrt(weight), 0))
		ops = append(ops, Operator{Matrix: l, Rate: f.params.AmplitudeDampingRate, Family: FamilyAmplitudeDamping, Index: i})
	}
	return ops
}

func (f *Factory) phaseDamping(space *hilbert.Space) []Operator {
	n := space.Dimension()
	ops := make([]Operator, n)
	for i := 0; i < n; i++ {
		ops[i] = Operator{Matrix: space.Projector(i), Rate: f.params.DephasingRate, Family: FamilyPhaseDamping, Index: i}
	}
	return ops
}

// localNoise couples each of the leading basis states to random partners with random complex weights.
func (f *Factory) localNoise(space *hilbert.Space) []Operator {
	n := space.Dimension()
	count := f.params.NoiseOperators
	if count > n {
		count = n
	}

	rng := rand.New(rand.NewPCG(f.params.Seed, f.params.Seed^0xbf58476d1ce4e5b9))
	ops := make([]Operator, count)
	for i := 0; i < count; i++ {
		l := linalg.New(n)
		nonZero := 0
		for j := 0; j < n; j++ {
			if rng.Float64() < f.params.NoiseDensity {
				l.Set(i, j, cmplx.Rect(rng.Float64(), 2*math.Pi*rng.Float64()))
				nonZero++
			}
		}
		if nonZero == 0 {
			l.Set(i, (i+1)%n, cmplx.Rect(rng.Float64(), 2*math.Pi*rng.Float64()))
		}
		ops[i] = Operator{Matrix: l, Rate: f.params.NoiseRate, Family: FamilyLocalNoise, Index: i}
	}
	return ops
}
