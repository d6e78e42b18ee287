// Package evolution integrates the Lindblad master equation on density matrices.
package evolution

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/metrics"
	"github.com/aristath/coherence/internal/modules/substrate"
)

// pureTolerance is how close Tr(ρ²) must be to 1 before a state vector is derived
const pureTolerance = 1e-9

// QuantumState wraps a density matrix and the diagnostics derived from it.
//
// States are values handed back to the caller: the integrator never mutates one,
// it returns a new state for every run.
type QuantumState struct {
	ID                    uuid.UUID
	Substrate             substrate.Type
	Timestamp             time.Time
	EnvironmentalCoupling float64

	CoherenceTime       float64
	EntanglementMeasure float64
	DecoherenceRate     float64
	// Fidelity is relative to the state this one was evolved from; 1 for fresh states.
	Fidelity       float64
	Classification metrics.Classification
	Report         metrics.Report

	// StateVector is set only for states that are pure within 1e-9, up to a global phase.
	StateVector []complex128

	rho *mat.CDense
}

// NewState wraps a copy of rho. rho must be square and non-empty.
func NewState(rho *mat.CDense, st substrate.Type, coupling float64) (*QuantumState, error) {
	n, ok := linalg.Square(rho)
	if !ok {
		r, c := 0, 0
		if rho != nil && !rho.IsEmpty() {
			r, c = rho.Dims()
		}
		return nil, domain.NewDimensionMismatchError("density matrix", r, r, c)
	}
	s := &QuantumState{
		ID:                    uuid.New(),
		Substrate:             st,
		Timestamp:             time.Now(),
		EnvironmentalCoupling: coupling,
		Fidelity:              1,
		rho:                   linalg.Clone(rho),
	}
	s.StateVector = derivePureVector(s.rho, n)
	return s, nil
}

// DensityMatrix returns a copy of ρ
func (s *QuantumState) DensityMatrix() *mat.CDense {
	return linalg.Clone(s.rho)
}

// Dimension returns n
func (s *QuantumState) Dimension() int {
	n, _ := s.rho.Dims()
	return n
}

// At returns ρ[i,j]
func (s *QuantumState) At(i, j int) complex128 {
	return s.rho.At(i, j)
}

// ApplyReport attaches a metrics report to the state's cached fields.
func (s *QuantumState) ApplyReport(report metrics.Report) {
	s.Report = report
	s.CoherenceTime = report.CoherenceTime
	s.EntanglementMeasure = report.EntanglementEntropy
	s.DecoherenceRate = report.DecoherenceRate
	s.Classification = report.Classification
}

// derive returns a fresh state holding rho that keeps the metadata of s.
func (s *QuantumState) derive(rho *mat.CDense) *QuantumState {
	n, _ := rho.Dims()
	out := &QuantumState{
		ID:                    uuid.New(),
		Substrate:             s.Substrate,
		Timestamp:             time.Now(),
		EnvironmentalCoupling: s.EnvironmentalCoupling,
		Fidelity:              1,
		rho:                   linalg.Clone(rho),
	}
	out.StateVector = derivePureVector(out.rho, n)
	return out
}

// derivePureVector reads ψ off the column of ρ = |ψ⟩⟨ψ| with the largest population.
func derivePureVector(rho *mat.CDense, n int) []complex128 {
	norm := linalg.FrobeniusNorm(rho)
	if math.Abs(norm*norm-1) > pureTolerance {
		return nil
	}
	best := 0
	for i := 1; i < n; i++ {
		if real(rho.At(i, i)) > real(rho.At(best, best)) {
			best = i
		}
	}
	pop := real(rho.At(best, best))
	if pop <= 0 {
		return nil
	}
	scale := complex(1/math.Sqrt(pop), 0)
	psi := make([]complex128, n)
	for i := 0; i < n; i++ {
		psi[i] = rho.At(i, best) * scale
	}
	// fix the global phase so the largest component is real and positive
	if phase := cmplx.Phase(psi[best]); phase != 0 {
		rot := cmplx.Rect(1, -phase)
		for i := range psi {
			psi[i] *= rot
		}
	}
	return psi
}
