package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/substrate"
)

func newRunner(workers int) *Runner {
	log := zerolog.Nop()
	return NewRunner(engine.New(engine.DefaultConfig(), log, nil), workers, log)
}

func TestRunner_PreservesOrder(t *testing.T) {
	r := newRunner(3)
	jobs := []Job{
		{Dimension: 2, Substrate: "posner", Initial: engine.InitialMixed, Duration: 1e-9},
		{Dimension: 3, Substrate: "tryptophan", Initial: engine.InitialMixed, Duration: 1e-9},
		{Dimension: 2, Substrate: "posner", Initial: engine.InitialGround, Duration: 0},
		{Dimension: 4, Substrate: "", Initial: engine.InitialMixed, Duration: 1e-9},
		{Dimension: 2, Substrate: "microtubule", Initial: engine.InitialMixed, Duration: 2e-9},
	}

	outcomes := r.Run(context.Background(), jobs)
	require.Len(t, outcomes, len(jobs))

	for i, o := range outcomes {
		require.NoError(t, o.Err, "job %d", i)
		assert.Equal(t, i, o.Index)
		assert.Equal(t, jobs[i], o.Job)
		require.NotNil(t, o.Result.State)
		assert.Equal(t, jobs[i].Dimension, o.Result.State.Dimension())
	}
	assert.Equal(t, substrate.Default, outcomes[3].Result.State.Substrate)
	assert.Zero(t, outcomes[2].Result.Diagnostics.StepsExecuted)

	// identical configurations share one operator set
	assert.Same(t, outcomes[0].Operators, outcomes[2].Operators)
}

func TestRunner_ReportsConfigurationErrors(t *testing.T) {
	r := newRunner(2)
	outcomes := r.Run(context.Background(), []Job{
		{Dimension: 1, Duration: 1e-9},
		{Dimension: 2, Substrate: "unobtainium", Duration: 1e-9},
		{Dimension: 2, Duration: -1},
		{Dimension: 2, Initial: engine.InitialMixed, Duration: 1e-9},
	})

	assert.True(t, errors.Is(outcomes[0].Err, domain.ErrConfiguration))
	assert.True(t, errors.Is(outcomes[1].Err, domain.ErrUnknownSubstrate))
	assert.True(t, errors.Is(outcomes[2].Err, domain.ErrConfiguration))
	assert.NoError(t, outcomes[3].Err)
}

func TestRunner_CancelledContext(t *testing.T) {
	r := newRunner(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := r.Run(ctx, []Job{
		{Dimension: 2, Initial: engine.InitialMixed, Duration: 1e-6},
		{Dimension: 2, Initial: engine.InitialMixed, Duration: 1e-6},
	})

	for _, o := range outcomes {
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, context.Canceled)
			continue
		}
		assert.True(t, o.Result.Diagnostics.Aborted)
		assert.Equal(t, evolution.CheckCancelled, o.Result.Diagnostics.FailedCheck)
	}
}

func TestRunner_EmptyBatch(t *testing.T) {
	assert.Empty(t, newRunner(4).Run(context.Background(), nil))
	assert.Equal(t, 1, newRunner(0).Workers())
}
