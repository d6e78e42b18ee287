// Package metrics derives physical diagnostics from a density matrix.
package metrics

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/hilbert"
	"github.com/aristath/coherence/pkg/formulas"
)

// Classification buckets a state by purity and coherence
type Classification string

const (
	Coherent          Classification = "COHERENT"
	Decoherent        Classification = "DECOHERENT"
	PartiallyCoherent Classification = "PARTIALLY_COHERENT"
	Entangled         Classification = "ENTANGLED"
	Superposition     Classification = "SUPERPOSITION"
)

// Verdict is the outcome of the PPT entanglement test
type Verdict string

const (
	// NotApplicable is reported when the dimension is not a perfect square k².
	NotApplicable Verdict = "not_applicable"
	Separable     Verdict = "separable"
	PPTEntangled  Verdict = "entangled"
)

const (
	// EntropyCutoff drops eigenvalues treated as numerical zeros from the entropy sum
	EntropyCutoff = 1e-12

	purityThreshold          = 0.95
	superpositionOffDiagonal = 0.1
	partialOffDiagonal       = 0.05
)

// EntanglementResult reports the PPT test on a k⊗k split
type EntanglementResult struct {
	Verdict Verdict `json:"verdict"`
	// SubsystemDimension is k, zero when not applicable
	SubsystemDimension int `json:"subsystem_dimension"`
	// MinEigenvalue is the smallest eigenvalue of the partial transpose
	MinEigenvalue float64 `json:"min_eigenvalue"`
	// Negativity is the sum of |λ| over negative partial-transpose eigenvalues
	Negativity float64 `json:"negativity"`
}

// FidelityResult carries the fidelity and how many eigenvalues were clamped to zero on the way.
type FidelityResult struct {
	Value              float64 `json:"value"`
	ClampedEigenvalues int     `json:"clamped_eigenvalues"`
}

// Report is the full diagnostic record for a state
type Report struct {
	CoherenceTime       float64            `json:"coherence_time"`
	EntanglementEntropy float64            `json:"entanglement_entropy"`
	DecoherenceRate     float64            `json:"decoherence_rate"`
	Purity              float64            `json:"purity"`
	OffDiagonalNorm     float64            `json:"off_diagonal_norm"`
	TotalNorm           float64            `json:"total_norm"`
	Classification      Classification     `json:"classification"`
	Entanglement        EntanglementResult `json:"entanglement"`
}

// Calculator computes diagnostics. It holds no per-state data and is safe for concurrent use.
type Calculator struct {
	psdTolerance float64
	log          zerolog.Logger
}

// NewCalculator creates a metrics calculator. psdTolerance is how negative a partial-transpose
// eigenvalue has to be before it counts as entanglement.
func NewCalculator(psdTolerance float64, log zerolog.Logger) *Calculator {
	return &Calculator{
		psdTolerance: psdTolerance,
		log:          log.With().Str("component", "metrics_calculator").Logger(),
	}
}

// CoherenceTime returns (Σ|off-diagonal| / Σ|all|) / mean(γ). +Inf when every rate is zero.
func (c *Calculator) CoherenceTime(rho *mat.CDense, rates []float64) float64 {
	off, total := linalg.AbsSums(rho)
	if total == 0 {
		return 0
	}
	mean := formulas.Mean(rates)
	if mean == 0 {
		return math.Inf(1)
	}
	return (off / total) / mean
}

// DecoherenceRate returns mean(γ)·(1 − Σ|off-diagonal| / Σ|all|)
func (c *Calculator) DecoherenceRate(rho *mat.CDense, rates []float64) float64 {
	off, total := linalg.AbsSums(rho)
	if total == 0 {
		return 0
	}
	return formulas.Mean(rates) * (1 - off/total)
}

// Purity returns Tr(ρ²). For Hermitian ρ this is Σ|ρᵢⱼ|².
func (c *Calculator) Purity(rho *mat.CDense) float64 {
	norm := linalg.FrobeniusNorm(rho)
	return norm * norm
}

// EntanglementEntropy returns the von Neumann entropy −Σ λ log₂ λ in bits.
func (c *Calculator) EntanglementEntropy(rho *mat.CDense) (float64, error) {
	values, err := linalg.HermitianEigenvalues(rho)
	if err != nil {
		return 0, fmt.Errorf("entropy: %w", err)
	}
	var entropy float64
	for _, v := range values {
		if v > EntropyCutoff {
			entropy -= v * math.Log2(v)
		}
	}
	return entropy, nil
}

// DetectEntanglement runs the PPT test over the second factor of a k⊗k split.
// Dimensions that are not perfect squares report NotApplicable without guessing.
func (c *Calculator) DetectEntanglement(rho *mat.CDense) (EntanglementResult, error) {
	n, _ := linalg.Square(rho)
	k, ok := hilbert.PerfectSquareRoot(n)
	if !ok || k < 2 {
		return EntanglementResult{Verdict: NotApplicable}, nil
	}

	pt, err := linalg.PartialTranspose(rho, k)
	if err != nil {
		return EntanglementResult{}, err
	}
	values, err := linalg.HermitianEigenvalues(pt)
	if err != nil {
		return EntanglementResult{}, fmt.Errorf("partial transpose: %w", err)
	}

	result := EntanglementResult{Verdict: Separable, SubsystemDimension: k, MinEigenvalue: values[0]}
	for _, v := range values {
		if v < -c.psdTolerance {
			result.Negativity -= v
		}
	}
	if result.Negativity > 0 {
		result.Verdict = PPTEntangled
	}
	return result, nil
}

// Classify returns the coherence class:
// purity > 0.95 with off-diagonal norm > 0.1 is SUPERPOSITION, otherwise purity > 0.95 is COHERENT,
// off-diagonal norm > 0.05 is PARTIALLY_COHERENT, a PPT violation is ENTANGLED, anything else DECOHERENT.
func (c *Calculator) Classify(rho *mat.CDense) (Classification, error) {
	off, _ := linalg.AbsSums(rho)
	return c.classify(rho, c.Purity(rho), off)
}

func (c *Calculator) classify(rho *mat.CDense, purity, off float64) (Classification, error) {
	switch {
	case purity > purityThreshold && off > superpositionOffDiagonal:
		return Superposition, nil
	case purity > purityThreshold:
		return Coherent, nil
	case off > partialOffDiagonal:
		return PartiallyCoherent, nil
	}

	result, err := c.DetectEntanglement(rho)
	if err != nil {
		return "", err
	}
	if result.Verdict == PPTEntangled {
		return Entangled, nil
	}
	return Decoherent, nil
}

// Fidelity returns Tr√(√ρ₁ ρ₂ √ρ₁) clamped to [0, 1]. Negative eigenvalues produced by
// numerical noise are clamped to zero before square roots are taken and counted in the result.
func (c *Calculator) Fidelity(rho1, rho2 *mat.CDense) (FidelityResult, error) {
	n, ok := linalg.Square(rho1)
	if !ok {
		return FidelityResult{}, linalg.CheckShape("fidelity", rho1, n)
	}
	if err := linalg.CheckShape("fidelity", rho2, n); err != nil {
		return FidelityResult{}, err
	}

	clamped := 0
	sqrtRho1, err := linalg.HermitianFunc(rho1, func(v float64) float64 {
		if v < 0 {
			clamped++
			return 0
		}
		return math.Sqrt(v)
	})
	if err != nil {
		return FidelityResult{}, fmt.Errorf("fidelity: %w", err)
	}
	// the embedding reports every eigenvalue twice
	clamped /= 2

	inner := linalg.Mul(linalg.Mul(sqrtRho1, rho2), sqrtRho1)
	values, err := linalg.HermitianEigenvalues(inner)
	if err != nil {
		return FidelityResult{}, fmt.Errorf("fidelity: %w", err)
	}

	var trace float64
	for _, v := range values {
		if v < 0 {
			clamped++
			continue
		}
		trace += math.Sqrt(v)
	}

	if clamped > 0 {
		c.log.Debug().Int("clamped_eigenvalues", clamped).Msg("Clamped negative eigenvalues in fidelity")
	}

	return FidelityResult{Value: math.Max(0, math.Min(1, trace)), ClampedEigenvalues: clamped}, nil
}

// Compute returns the full report for ρ given the dissipator rates.
func (c *Calculator) Compute(rho *mat.CDense, rates []float64) (Report, error) {
	off, total := linalg.AbsSums(rho)
	purity := c.Purity(rho)

	entropy, err := c.EntanglementEntropy(rho)
	if err != nil {
		return Report{}, err
	}
	entanglement, err := c.DetectEntanglement(rho)
	if err != nil {
		return Report{}, err
	}
	class, err := c.classify(rho, purity, off)
	if err != nil {
		return Report{}, err
	}

	return Report{
		CoherenceTime:       c.CoherenceTime(rho, rates),
		EntanglementEntropy: entropy,
		DecoherenceRate:     c.DecoherenceRate(rho, rates),
		Purity:              purity,
		OffDiagonalNorm:     off,
		TotalNorm:           total,
		Classification:      class,
		Entanglement:        entanglement,
	}, nil
}
