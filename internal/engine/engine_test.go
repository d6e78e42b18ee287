package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/lindblad"
	"github.com/aristath/coherence/internal/modules/metrics"
	"github.com/aristath/coherence/internal/modules/substrate"
)

type recordingRecorder struct {
	mu         sync.Mutex
	runs       []evolution.Diagnostics
	clamped    int
	substrates []string
}

func (r *recordingRecorder) RecordEvolution(s string, diag evolution.Diagnostics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, diag)
	r.substrates = append(r.substrates, s)
}

func (r *recordingRecorder) RecordFidelityClamp(clamped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clamped += clamped
}

func newEngine(t *testing.T, cfg Config, rec Recorder) *Engine {
	t.Helper()
	return New(cfg, zerolog.Nop(), rec)
}

func TestConfigureHilbertSpace(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)

	_, err := e.ConfigureHilbertSpace(1)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	space, err := e.ConfigureHilbertSpace(4)
	require.NoError(t, err)
	assert.Equal(t, 4, space.Dimension())
}

func TestBuildOperators(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)
	space, err := e.ConfigureHilbertSpace(4)
	require.NoError(t, err)

	ops, err := e.BuildOperators(space, "microtubule")
	require.NoError(t, err)

	assert.Equal(t, substrate.Microtubule, ops.Substrate)
	assert.Equal(t, 4, ops.Hamiltonian.Dimension())
	// 3 amplitude damping + 4 phase damping + 4 noise
	assert.Len(t, ops.Lindblad, 11)
	assert.Len(t, ops.Channels, len(substrate.Types()))
	assert.Len(t, ops.Qubits, 13)
	assert.InDelta(t, 1e-3, ops.Coupling(), 1e-12)

	c, ok := ops.Channel(substrate.Posner)
	require.True(t, ok)
	assert.Equal(t, 4, c.Dimension())

	_, err = e.BuildOperators(space, "unobtainium")
	assert.True(t, errors.Is(err, domain.ErrUnknownSubstrate))

	ops, err = e.BuildOperators(space, "")
	require.NoError(t, err)
	assert.Equal(t, substrate.Default, ops.Substrate)
}

func TestBuildOperators_ChannelDissipators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChannelDissipators = true
	e := newEngine(t, cfg, nil)
	space, err := e.ConfigureHilbertSpace(3)
	require.NoError(t, err)

	ops, err := e.BuildOperators(space, "tryptophan")
	require.NoError(t, err)

	last := ops.Lindblad[len(ops.Lindblad)-1]
	assert.Equal(t, lindblad.FamilyChannel, last.Family)
	assert.Equal(t, cfg.ChannelRate, last.Rate)
}

func TestInitialState(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)
	space, err := e.ConfigureHilbertSpace(4)
	require.NoError(t, err)
	ops, err := e.BuildOperators(space, "posner")
	require.NoError(t, err)

	tests := []struct {
		kind  InitialKind
		class metrics.Classification
	}{
		{InitialGround, metrics.Coherent},
		{InitialExcited, metrics.Coherent},
		{InitialSuperposition, metrics.Superposition},
		{InitialMixed, metrics.Decoherent},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, err := e.InitialState(space, ops, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, substrate.Posner, s.Substrate)
			assert.True(t, e.Validator().Validate(s.DensityMatrix()).Valid)

			report, err := e.ComputeMetrics(s, ops)
			require.NoError(t, err)
			assert.Equal(t, tt.class, report.Classification)
		})
	}

	_, err = e.InitialState(space, ops, "thermal")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestEvolve_RecordsOutcome(t *testing.T) {
	rec := &recordingRecorder{}
	e := newEngine(t, DefaultConfig(), rec)
	space, err := e.ConfigureHilbertSpace(2)
	require.NoError(t, err)
	ops, err := e.BuildOperators(space, "")
	require.NoError(t, err)
	initial, err := e.InitialState(space, ops, InitialMixed)
	require.NoError(t, err)

	steps := 0
	result, err := e.Evolve(context.Background(), space, ops, initial, 1e-8, WithObserver(func(evolution.Progress) { steps++ }, 100))
	require.NoError(t, err)

	assert.True(t, e.Validator().Validate(result.State.DensityMatrix()).Valid)
	assert.LessOrEqual(t, result.Diagnostics.StepsExecuted, result.Diagnostics.RequestedSteps)
	assert.Positive(t, steps)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "default", rec.substrates[0])
	assert.InDelta(t, 1e-3, result.State.EnvironmentalCoupling, 1e-12)
}

func TestEvolve_RejectsForeignState(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)
	two, err := e.ConfigureHilbertSpace(2)
	require.NoError(t, err)
	three, err := e.ConfigureHilbertSpace(3)
	require.NoError(t, err)

	ops, err := e.BuildOperators(two, "")
	require.NoError(t, err)
	state, err := e.InitialState(three, nil, InitialGround)
	require.NoError(t, err)

	_, err = e.Evolve(context.Background(), two, ops, state, 1e-9)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	_, err = e.Evolve(context.Background(), two, nil, state, 1e-9)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestEvolve_ConcurrentRunsShareOperators(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)
	space, err := e.ConfigureHilbertSpace(3)
	require.NoError(t, err)
	ops, err := e.BuildOperators(space, "tryptophan")
	require.NoError(t, err)
	initial, err := e.InitialState(space, ops, InitialMixed)
	require.NoError(t, err)

	const runs = 4
	results := make([]Result, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Evolve(context.Background(), space, ops, initial, 5e-9)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < runs; i++ {
		require.NotNil(t, results[i].State)
		assert.Equal(t, results[0].Diagnostics.StepsExecuted, results[i].Diagnostics.StepsExecuted)
		assert.InDelta(t, results[0].State.Report.Purity, results[i].State.Report.Purity, 1e-12)
	}
}

func TestFidelity(t *testing.T) {
	rec := &recordingRecorder{}
	e := newEngine(t, DefaultConfig(), rec)
	space, err := e.ConfigureHilbertSpace(2)
	require.NoError(t, err)

	ground, err := e.InitialState(space, nil, InitialGround)
	require.NoError(t, err)
	excited, err := e.InitialState(space, nil, InitialExcited)
	require.NoError(t, err)
	plus, err := e.InitialState(space, nil, InitialSuperposition)
	require.NoError(t, err)

	f, err := e.Fidelity(ground, excited)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, f.Value, 1e-6)

	f, err = e.Fidelity(ground, plus)
	require.NoError(t, err)
	assert.InDelta(t, 1/math.Sqrt2, f.Value, 1e-6)
}
