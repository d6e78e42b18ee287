// Package engine wires the Hilbert space, operator builders, integrator and metrics
// into the library contract callers program against.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/modules/channels"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/hamiltonian"
	"github.com/aristath/coherence/internal/modules/hilbert"
	"github.com/aristath/coherence/internal/modules/lindblad"
	"github.com/aristath/coherence/internal/modules/metrics"
	"github.com/aristath/coherence/internal/modules/substrate"
)

// Config gathers the settings of every engine component
type Config struct {
	Integrator  evolution.Config
	Tolerances  evolution.Tolerances
	Hamiltonian hamiltonian.Params
	Lindblad    lindblad.Params

	// ChannelDissipators appends the substrate's decoherence channel as an extra jump operator.
	ChannelDissipators bool
	ChannelRate        float64
}

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		Integrator:  evolution.DefaultConfig(),
		Tolerances:  evolution.DefaultTolerances(),
		Hamiltonian: hamiltonian.DefaultParams(),
		Lindblad:    lindblad.DefaultParams(),
		ChannelRate: 1e3,
	}
}

// Recorder receives run outcomes for monitoring
type Recorder interface {
	RecordEvolution(substrate string, diag evolution.Diagnostics)
	RecordFidelityClamp(clamped int)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvolution(string, evolution.Diagnostics) {}
func (nopRecorder) RecordFidelityClamp(int)                       {}

// InitialKind names a preset initial state
type InitialKind string

const (
	InitialGround        InitialKind = "ground"
	InitialSuperposition InitialKind = "superposition"
	InitialMixed         InitialKind = "mixed"
	InitialExcited       InitialKind = "excited"
)

// Operators is everything built for one (space, substrate) configuration.
// It is read-only once built and may be shared between concurrent runs.
type Operators struct {
	Substrate   substrate.Type
	Hamiltonian *hamiltonian.Hamiltonian
	Lindblad    []lindblad.Operator
	// Channels holds one diagnostic channel per supported substrate, in substrate.Types() order.
	Channels []channels.Channel
	Qubits   []substrate.Qubit
}

// Channel returns the diagnostic channel of substrate t
func (o *Operators) Channel(t substrate.Type) (channels.Channel, bool) {
	for _, c := range o.Channels {
		if c.Substrate == t {
			return c, true
		}
	}
	return channels.Channel{}, false
}

// Rates returns γ of every jump operator
func (o *Operators) Rates() []float64 {
	return lindblad.Rates(o.Lindblad)
}

// Coupling returns the mean qubit coupling strength of the substrate
func (o *Operators) Coupling() float64 {
	if len(o.Qubits) == 0 {
		return 0
	}
	var sum float64
	for _, q := range o.Qubits {
		sum += q.CouplingStrength
	}
	return sum / float64(len(o.Qubits))
}

// Result is the outcome of one Evolve call
type Result struct {
	State       *evolution.QuantumState
	Diagnostics evolution.Diagnostics
}

// EvolveOption tunes a single Evolve call
type EvolveOption func(*evolution.Request)

// WithObserver reports progress every n accepted steps
func WithObserver(observer evolution.Observer, every int) EvolveOption {
	return func(r *evolution.Request) {
		r.Observer = observer
		r.ObserveEvery = every
	}
}

// Engine is the library entry point. It holds only immutable configuration and
// stateless components, so one Engine serves concurrent callers.
type Engine struct {
	cfg        Config
	builder    *hamiltonian.Builder
	factory    *lindblad.Factory
	generator  *channels.Generator
	calc       *metrics.Calculator
	validator  *evolution.Validator
	integrator *evolution.Integrator
	recorder   Recorder
	log        zerolog.Logger
}

// New creates an engine. recorder may be nil.
func New(cfg Config, log zerolog.Logger, recorder Recorder) *Engine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	calc := metrics.NewCalculator(cfg.Tolerances.Positivity, log)
	validator := evolution.NewValidator(cfg.Tolerances)
	return &Engine{
		cfg:        cfg,
		builder:    hamiltonian.NewBuilder(cfg.Hamiltonian, log),
		factory:    lindblad.NewFactory(cfg.Lindblad, log),
		generator:  channels.NewGenerator(log),
		calc:       calc,
		validator:  validator,
		integrator: evolution.NewIntegrator(cfg.Integrator, validator, calc, log),
		recorder:   recorder,
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Validator returns the density-matrix validator used for every accepted step
func (e *Engine) Validator() *evolution.Validator {
	return e.validator
}

// TimeStep returns dt and the number of steps a run of the given duration takes
func (e *Engine) TimeStep(duration float64) (float64, int) {
	dt, steps := e.integrator.TimeStep(duration)
	if limit := e.cfg.Integrator.MaxSteps; limit > 0 && steps > limit {
		steps = limit
	}
	return dt, steps
}

// ConfigureHilbertSpace creates the space every matrix of a configuration is checked against
func (e *Engine) ConfigureHilbertSpace(dimension int) (*hilbert.Space, error) {
	return hilbert.New(dimension)
}

// BuildOperators builds H, the jump operators and the diagnostic channels for a substrate.
// The empty name selects the default substrate.
func (e *Engine) BuildOperators(space *hilbert.Space, substrateName string) (*Operators, error) {
	st, err := substrate.ParseType(substrateName)
	if err != nil {
		return nil, err
	}
	model, err := substrate.NewModel(st)
	if err != nil {
		return nil, err
	}

	h, err := e.builder.Build(space)
	if err != nil {
		return nil, fmt.Errorf("build hamiltonian: %w", err)
	}
	ops, err := e.factory.Build(space, h)
	if err != nil {
		return nil, fmt.Errorf("build lindblad operators: %w", err)
	}

	types := substrate.Types()
	chans := make([]channels.Channel, 0, len(types))
	for _, t := range types {
		c, err := e.generator.Generate(t, space.Dimension())
		if err != nil {
			// channels are diagnostic; keep the empty one and carry on
			e.log.Warn().Err(err).Str("substrate", string(t)).Msg("Channel generation failed")
		}
		chans = append(chans, c)
	}

	out := &Operators{
		Substrate:   st,
		Hamiltonian: h,
		Lindblad:    ops,
		Channels:    chans,
		Qubits:      model.Qubits(),
	}

	if e.cfg.ChannelDissipators {
		if c, ok := out.Channel(st); ok && c.Dimension() == space.Dimension() {
			op, err := lindblad.NewOperator(c.Matrix(), e.cfg.ChannelRate, lindblad.FamilyChannel, 0)
			if err != nil {
				return nil, err
			}
			out.Lindblad = append(out.Lindblad, op)
		}
	}

	e.log.Debug().
		Str("substrate", string(st)).
		Int("dimension", space.Dimension()).
		Int("operators", len(out.Lindblad)).
		Msg("Built operators")

	return out, nil
}

// InitialState returns a preset state of the space tagged with the substrate of ops
func (e *Engine) InitialState(space *hilbert.Space, ops *Operators, kind InitialKind) (*evolution.QuantumState, error) {
	n := space.Dimension()
	psi := make([]complex128, n)

	var rhoErr error
	rho := space.MaximallyMixed()
	switch kind {
	case InitialGround, "":
		psi[0] = 1
		rho, rhoErr = space.PureState(psi)
	case InitialExcited:
		psi[n-1] = 1
		rho, rhoErr = space.PureState(psi)
	case InitialSuperposition:
		for i := range psi {
			psi[i] = 1
		}
		rho, rhoErr = space.PureState(psi)
	case InitialMixed:
	default:
		return nil, domain.NewConfigurationError("initial_state", kind, "must be one of ground, superposition, mixed, excited")
	}
	if rhoErr != nil {
		return nil, rhoErr
	}

	st, coupling := substrate.Default, 0.0
	if ops != nil {
		st, coupling = ops.Substrate, ops.Coupling()
	}
	return evolution.NewState(rho, st, coupling)
}

// Evolve integrates state under ops for duration seconds. An aborted run is reported
// through the diagnostics, never as an error.
func (e *Engine) Evolve(ctx context.Context, space *hilbert.Space, ops *Operators, state *evolution.QuantumState, duration float64, opts ...EvolveOption) (Result, error) {
	if ops == nil {
		return Result{}, domain.NewConfigurationError("operators", nil, "operators are required")
	}
	if state == nil {
		return Result{}, domain.NewConfigurationError("initial_state", nil, "initial state is required")
	}
	if err := space.Check("initial state", state.DensityMatrix()); err != nil {
		return Result{}, err
	}

	req := evolution.Request{
		Hamiltonian: ops.Hamiltonian.Matrix(),
		Operators:   ops.Lindblad,
		Initial:     state,
		Duration:    duration,
	}
	for _, opt := range opts {
		opt(&req)
	}

	out, diag, err := e.integrator.Evolve(ctx, req)
	if err != nil {
		return Result{}, err
	}
	e.recorder.RecordEvolution(string(ops.Substrate), diag)

	e.log.Info().
		Str("substrate", string(ops.Substrate)).
		Int("dimension", space.Dimension()).
		Int("steps", diag.StepsExecuted).
		Bool("aborted", diag.Aborted).
		Str("classification", string(out.Classification)).
		Dur("elapsed", diag.Elapsed).
		Msg("Evolution finished")

	return Result{State: out, Diagnostics: diag}, nil
}

// ComputeMetrics returns the metrics record of state under the rates of ops.
// ops may be nil, which means no dissipators.
func (e *Engine) ComputeMetrics(state *evolution.QuantumState, ops *Operators) (metrics.Report, error) {
	var rates []float64
	if ops != nil {
		rates = ops.Rates()
	}
	return e.calc.Compute(state.DensityMatrix(), rates)
}

// Fidelity returns the fidelity of two states, in [0, 1]
func (e *Engine) Fidelity(a, b *evolution.QuantumState) (metrics.FidelityResult, error) {
	result, err := e.calc.Fidelity(a.DensityMatrix(), b.DensityMatrix())
	if err != nil {
		return metrics.FidelityResult{}, err
	}
	if result.ClampedEigenvalues > 0 {
		e.recorder.RecordFidelityClamp(result.ClampedEigenvalues)
	}
	return result, nil
}

// Calculator exposes the metrics calculator for raw density matrices
func (e *Engine) Calculator() *metrics.Calculator {
	return e.calc
}
