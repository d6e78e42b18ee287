package evolution

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/linalg"
)

// Check names a validity check. The empty check means none failed.
type Check string

const (
	CheckNone        Check = ""
	CheckShape       Check = "shape"
	CheckFinite      Check = "finite"
	CheckTrace       Check = "trace"
	CheckHermiticity Check = "hermiticity"
	CheckPositivity  Check = "positivity"
	// CheckCancelled is reported when the caller's context ended the run.
	CheckCancelled Check = "cancelled"
)

// Tolerances bound the three density-matrix checks
type Tolerances struct {
	Trace       float64
	Hermiticity float64
	Positivity  float64
}

// DefaultTolerances returns the tolerances every accepted step is held to
func DefaultTolerances() Tolerances {
	return Tolerances{Trace: 1e-6, Hermiticity: 1e-8, Positivity: 1e-8}
}

// ValidationResult says whether ρ passed and, if not, which check failed with the measured value.
type ValidationResult struct {
	Valid  bool
	Failed Check
	// Value is |tr−1|, ‖ρ−ρ†‖ or the smallest eigenvalue, depending on the failed check.
	Value float64
}

// Validator checks physical validity of density matrices. It never panics on bad input.
type Validator struct {
	tol Tolerances
}

// NewValidator creates a density-matrix validator
func NewValidator(tol Tolerances) *Validator {
	return &Validator{tol: tol}
}

// Tolerances returns the configured tolerances
func (v *Validator) Tolerances() Tolerances {
	return v.tol
}

// Validate runs, in order, finiteness, trace, Hermiticity and positive-semidefiniteness checks,
// stopping at the first failure.
func (v *Validator) Validate(rho *mat.CDense) ValidationResult {
	if _, ok := linalg.Square(rho); !ok {
		return ValidationResult{Failed: CheckShape, Value: math.NaN()}
	}
	if !linalg.IsFinite(rho) {
		return ValidationResult{Failed: CheckFinite, Value: math.NaN()}
	}

	if dev := cmplx.Abs(linalg.Trace(rho) - 1); dev > v.tol.Trace {
		return ValidationResult{Failed: CheckTrace, Value: dev}
	}

	if dev := linalg.HermiticityDeviation(rho); dev > v.tol.Hermiticity {
		return ValidationResult{Failed: CheckHermiticity, Value: dev}
	}

	values, err := linalg.HermitianEigenvalues(rho)
	if err != nil {
		return ValidationResult{Failed: CheckPositivity, Value: math.NaN()}
	}
	if values[0] < -v.tol.Positivity {
		return ValidationResult{Failed: CheckPositivity, Value: values[0]}
	}

	return ValidationResult{Valid: true}
}
