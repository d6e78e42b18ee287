package evolution

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/lindblad"
	"github.com/aristath/coherence/internal/modules/metrics"
	"github.com/aristath/coherence/pkg/formulas"
)

// Phase is a state of one integration run
type Phase string

const (
	PhaseReady    Phase = "READY"
	PhaseStepping Phase = "STEPPING"
	PhaseValid    Phase = "VALID"
	PhaseAborted  Phase = "ABORTED"
	PhaseDone     Phase = "DONE"
)

const (
	// stepsPerDuration caps dt at T/1000 for short durations
	stepsPerDuration = 1000
	// stepRounding absorbs floor(T/(T/1000)) landing on 999
	stepRounding = 1e-9
)

// Config holds the integrator settings
type Config struct {
	BaseTimeStep float64 // seconds
	MaxSteps     int
}

// DefaultConfig returns the reference integrator settings. The base step keeps
// ‖K‖·dt below 0.1 for the default operators up to dimension 64.
func DefaultConfig() Config {
	return Config{BaseTimeStep: 1e-11, MaxSteps: 1_000_000}
}

// Progress is handed to an Observer after an accepted step
type Progress struct {
	Step    int
	Time    float64
	Density *mat.CDense
}

// Observer receives progress on accepted steps. It runs on the integrating goroutine.
type Observer func(Progress)

// Request describes one evolution run
type Request struct {
	Hamiltonian *mat.CDense
	Operators   []lindblad.Operator
	Initial     *QuantumState
	Duration    float64
	Observer    Observer
	// ObserveEvery calls Observer every n accepted steps; values below 1 mean every step.
	ObserveEvery int
}

// Diagnostics reports how a run went. An aborted run is a normal outcome, not an error.
type Diagnostics struct {
	RequestedSteps int     `json:"requested_steps"`
	StepsExecuted  int     `json:"steps_executed"`
	TimeStep       float64 `json:"time_step"`
	SimulatedTime  float64 `json:"simulated_time"`
	Aborted        bool    `json:"aborted"`
	FailedCheck    Check   `json:"failed_check,omitempty"`
	FailedValue    float64 `json:"failed_value,omitempty"`
	// AbortStep is the 1-based step that was rejected, 0 when nothing was rejected.
	AbortStep int           `json:"abort_step,omitempty"`
	Truncated bool          `json:"truncated"`
	Phases    []Phase       `json:"phases"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Outcome returns VALID or ABORTED
func (d Diagnostics) Outcome() Phase {
	if d.Aborted {
		return PhaseAborted
	}
	return PhaseValid
}

// Integrator advances density matrices with classical RK4. It keeps no per-run state,
// so one Integrator can serve concurrent runs.
type Integrator struct {
	cfg       Config
	validator *Validator
	calc      *metrics.Calculator
	log       zerolog.Logger
}

// NewIntegrator creates a new master-equation integrator
func NewIntegrator(cfg Config, validator *Validator, calc *metrics.Calculator, log zerolog.Logger) *Integrator {
	return &Integrator{
		cfg:       cfg,
		validator: validator,
		calc:      calc,
		log:       log.With().Str("component", "integrator").Logger(),
	}
}

// TimeStep returns dt = min(base step, T/1000) and floor(T/dt)
func (in *Integrator) TimeStep(duration float64) (float64, int) {
	if duration <= 0 {
		return in.cfg.BaseTimeStep, 0
	}
	dt := math.Min(in.cfg.BaseTimeStep, duration/stepsPerDuration)
	if dt <= 0 {
		return dt, 0
	}
	return dt, int(math.Floor(duration/dt + stepRounding))
}

// Evolve integrates ρ̇ = −(i/ħ)[H, ρ] + Σ γ (L ρ L† − ½{L†L, ρ}) for req.Duration seconds.
//
// The caller's state is never touched; a new state is always returned. Failed validation,
// NaN/Inf and context cancellation abort the run and return the last valid ρ with
// diagnostics describing why. Errors are returned only for bad requests.
func (in *Integrator) Evolve(ctx context.Context, req Request) (*QuantumState, Diagnostics, error) {
	started := time.Now()
	diag := Diagnostics{Phases: []Phase{PhaseReady}}

	if err := in.checkRequest(req); err != nil {
		return nil, diag, err
	}

	rates := lindblad.Rates(req.Operators)
	rho := req.Initial.DensityMatrix()

	if req.Duration == 0 {
		diag.Phases = append(diag.Phases, PhaseValid, PhaseDone)
		out, err := in.finish(req.Initial, rho, rates)
		diag.Elapsed = time.Since(started)
		return out, diag, err
	}

	dt, steps := in.TimeStep(req.Duration)
	diag.TimeStep = dt
	if in.cfg.MaxSteps > 0 && steps > in.cfg.MaxSteps {
		steps = in.cfg.MaxSteps
		diag.Truncated = true
	}
	diag.RequestedSteps = steps

	in.log.Debug().
		Float64("duration", req.Duration).
		Float64("dt", dt).
		Int("steps", steps).
		Int("operators", len(req.Operators)).
		Msg("Starting evolution")

	if steps == 0 {
		if tr := real(linalg.Trace(rho)); tr > 0 {
			linalg.ScaleInPlace(complex(1/tr, 0), rho)
		}
		diag.Phases = append(diag.Phases, PhaseValid, PhaseDone)
		out, err := in.finish(req.Initial, rho, rates)
		diag.Elapsed = time.Since(started)
		return out, diag, err
	}

	diag.Phases = append(diag.Phases, PhaseStepping)
	stepper := newRK4(req.Hamiltonian, req.Operators, rho)
	lastValid := linalg.Clone(rho)
	every := req.ObserveEvery
	if every < 1 {
		every = 1
	}

	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			in.abort(&diag, step, ValidationResult{Failed: CheckCancelled})
			break
		}

		stepper.step(rho, dt)

		result := in.renormalize(rho)
		if result.Valid {
			result = in.validator.Validate(rho)
		}
		if !result.Valid {
			in.abort(&diag, step, result)
			break
		}

		linalg.CopyInto(lastValid, rho)
		diag.StepsExecuted = step
		diag.SimulatedTime = float64(step) * dt

		if req.Observer != nil && (step%every == 0 || step == steps) {
			req.Observer(Progress{Step: step, Time: diag.SimulatedTime, Density: linalg.Clone(rho)})
		}
	}

	if diag.Aborted {
		diag.Phases = append(diag.Phases, PhaseAborted, PhaseDone)
	} else {
		diag.Phases = append(diag.Phases, PhaseValid, PhaseDone)
	}

	out, err := in.finish(req.Initial, lastValid, rates)
	diag.Elapsed = time.Since(started)
	return out, diag, err
}

func (in *Integrator) checkRequest(req Request) error {
	if req.Initial == nil {
		return domain.NewConfigurationError("initial_state", nil, "initial state is required")
	}
	if math.IsNaN(req.Duration) || math.IsInf(req.Duration, 0) || req.Duration < 0 {
		return domain.NewConfigurationError("duration", req.Duration, "must be finite and non-negative")
	}
	n := req.Initial.Dimension()
	if err := linalg.CheckShape("hamiltonian", req.Hamiltonian, n); err != nil {
		return err
	}
	for i, op := range req.Operators {
		if err := linalg.CheckShape(fmt.Sprintf("lindblad operator %d (%s)", i, op.Family), op.Matrix, n); err != nil {
			return err
		}
		if op.Rate < 0 || math.IsNaN(op.Rate) {
			return domain.NewConfigurationError("rate", op.Rate, "must be non-negative")
		}
	}
	return nil
}

// renormalize divides ρ by its trace, rejecting NaN/Inf and non-positive traces.
func (in *Integrator) renormalize(rho *mat.CDense) ValidationResult {
	if !linalg.IsFinite(rho) {
		return ValidationResult{Failed: CheckFinite, Value: math.NaN()}
	}
	tr := real(linalg.Trace(rho))
	if tr <= 0 {
		return ValidationResult{Failed: CheckTrace, Value: tr}
	}
	linalg.ScaleInPlace(complex(1/tr, 0), rho)
	return ValidationResult{Valid: true}
}

func (in *Integrator) abort(diag *Diagnostics, step int, result ValidationResult) {
	diag.Aborted = true
	diag.FailedCheck = result.Failed
	diag.FailedValue = result.Value
	diag.AbortStep = step

	in.log.Warn().
		Str("failed_check", string(result.Failed)).
		Float64("value", result.Value).
		Int("step", step).
		Int("accepted_steps", step-1).
		Msg("Evolution aborted, keeping last valid state")
}

// finish wraps rho in a new state with metrics and fidelity to the initial state attached.
func (in *Integrator) finish(initial *QuantumState, rho *mat.CDense, rates []float64) (*QuantumState, error) {
	out := initial.derive(rho)

	report, err := in.calc.Compute(out.rho, rates)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	out.ApplyReport(report)

	fidelity, err := in.calc.Fidelity(initial.rho, out.rho)
	if err != nil {
		return nil, fmt.Errorf("fidelity: %w", err)
	}
	out.Fidelity = fidelity.Value

	return out, nil
}

// rk4 holds the effective generator and scratch buffers for one run.
//
// With K = −(i/ħ)H − ½ Σ γ L†L the Lindbladian is D(ρ) = Kρ + ρK† + Σ γ LρL†.
type rk4 struct {
	k         *mat.CDense
	ops       []lindblad.Operator
	jumps     []jump
	d1        *mat.CDense
	d2        *mat.CDense
	d3        *mat.CDense
	d4        *mat.CDense
	work      *mat.CDense
	scratch   *mat.CDense
	dimension int
}

// jump is a jump operator with one non-zero entry v at (row, col).
// Its sandwich γ LρL† is γ|v|²·ρ[col][col] placed at (row, row).
type jump struct {
	row    int
	col    int
	weight float64
}

// singleEntry reports the position and value of the only non-zero entry of a
func singleEntry(a *mat.CDense) (row, col int, v complex128, ok bool) {
	n, m := a.Dims()
	found := false
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			x := a.At(i, j)
			if x == 0 {
				continue
			}
			if found {
				return 0, 0, 0, false
			}
			row, col, v, found = i, j, x, true
		}
	}
	return row, col, v, found
}

func newRK4(h *mat.CDense, ops []lindblad.Operator, rho *mat.CDense) *rk4 {
	n, _ := rho.Dims()
	k := linalg.Clone(h)
	linalg.ScaleInPlace(complex(0, -1/formulas.ReducedPlanck), k)

	dense := make([]lindblad.Operator, 0, len(ops))
	var jumps []jump
	for _, op := range ops {
		if op.Rate == 0 || linalg.FrobeniusNorm(op.Matrix) == 0 {
			continue
		}
		// K −= ½γ L†L
		linalg.Gemm(k, blas.ConjTrans, op.Matrix, blas.NoTrans, op.Matrix, complex(-0.5*op.Rate, 0), 1)

		if r, c, v, ok := singleEntry(op.Matrix); ok {
			abs := cmplx.Abs(v)
			jumps = append(jumps, jump{row: r, col: c, weight: op.Rate * abs * abs})
			continue
		}
		dense = append(dense, op)
	}

	return &rk4{
		k:         k,
		ops:       dense,
		jumps:     jumps,
		d1:        linalg.New(n),
		d2:        linalg.New(n),
		d3:        linalg.New(n),
		d4:        linalg.New(n),
		work:      linalg.New(n),
		scratch:   linalg.New(n),
		dimension: n,
	}
}

// derivative writes D(rho) into dst
func (s *rk4) derivative(dst, rho *mat.CDense) {
	linalg.Gemm(dst, blas.NoTrans, s.k, blas.NoTrans, rho, 1, 0)
	linalg.Gemm(dst, blas.NoTrans, rho, blas.ConjTrans, s.k, 1, 1)
	for _, j := range s.jumps {
		dst.Set(j.row, j.row, dst.At(j.row, j.row)+complex(j.weight, 0)*rho.At(j.col, j.col))
	}
	for _, op := range s.ops {
		linalg.Gemm(s.scratch, blas.NoTrans, op.Matrix, blas.NoTrans, rho, 1, 0)
		linalg.Gemm(dst, blas.NoTrans, s.scratch, blas.ConjTrans, op.Matrix, complex(op.Rate, 0), 1)
	}
}

// step advances rho in place by dt:
// ρ += dt/6 (D₁ + 2D₂ + 2D₃ + D₄) with D evaluated at ρ, ρ+dt/2·D₁, ρ+dt/2·D₂, ρ+dt·D₃.
func (s *rk4) step(rho *mat.CDense, dt float64) {
	half := complex(dt/2, 0)

	s.derivative(s.d1, rho)
	linalg.AddScaledInto(s.work, rho, half, s.d1)
	s.derivative(s.d2, s.work)
	linalg.AddScaledInto(s.work, rho, half, s.d2)
	s.derivative(s.d3, s.work)
	linalg.AddScaledInto(s.work, rho, complex(dt, 0), s.d3)
	s.derivative(s.d4, s.work)

	sixth := complex(dt/6, 0)
	third := complex(dt/3, 0)
	linalg.AddScaledInto(rho, rho, sixth, s.d1)
	linalg.AddScaledInto(rho, rho, third, s.d2)
	linalg.AddScaledInto(rho, rho, third, s.d3)
	linalg.AddScaledInto(rho, rho, sixth, s.d4)
}
