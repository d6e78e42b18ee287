package runs

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/database"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/metrics"
	"github.com/aristath/coherence/internal/modules/substrate"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{Profile: database.ProfileMemory, Name: "runs"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewRepository(db.Conn(), zerolog.Nop())
}

func sampleRun(t *testing.T) Run {
	t.Helper()
	rho, err := linalg.FromRows([][]complex128{{0.7, 0.1 - 0.2i}, {0.1 + 0.2i, 0.3}})
	require.NoError(t, err)
	state, err := evolution.NewState(rho, substrate.Posner, 1e-6)
	require.NoError(t, err)
	state.ApplyReport(metrics.Report{
		CoherenceTime:       1e-4,
		EntanglementEntropy: 0.4,
		DecoherenceRate:     12,
		Purity:              0.68,
		Classification:      metrics.PartiallyCoherent,
	})
	return NewRun(state, evolution.Diagnostics{RequestedSteps: 1000, StepsExecuted: 1000}, 1e-6, SourceAPI)
}

func TestCodec_RoundTrip(t *testing.T) {
	rho, err := linalg.FromRows([][]complex128{{0.5, 0.25i}, {-0.25i, 0.5}})
	require.NoError(t, err)

	data, err := EncodeDensity(rho)
	require.NoError(t, err)
	back, err := DecodeDensity(data)
	require.NoError(t, err)
	assert.True(t, linalg.EqualApprox(rho, back, 0))

	_, err = DecodeDensity([]byte{0xc1})
	assert.Error(t, err)
	_, err = EncodeDensity(&mat.CDense{})
	assert.Error(t, err)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	run := sampleRun(t)

	id, err := repo.Create(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, run.ID, id)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "posner", got.Substrate)
	assert.Equal(t, 2, got.Dimension)
	assert.Equal(t, 1000, got.StepsExecuted)
	assert.False(t, got.Aborted)
	assert.Equal(t, "PARTIALLY_COHERENT", got.Classification)
	assert.Equal(t, 1e-4, got.CoherenceTime)
	assert.Equal(t, SourceAPI, got.Source)
	assert.True(t, linalg.EqualApprox(run.Density, got.Density, 0))
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestRepository_InfiniteCoherenceTimeStoredAsNull(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	run := sampleRun(t)
	run.CoherenceTime = math.Inf(1)
	run.Aborted = true
	run.FailedCheck = string(evolution.CheckPositivity)

	id, err := repo.Create(ctx, run)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, math.IsInf(got.CoherenceTime, 1))
	assert.True(t, got.Aborted)
	assert.Equal(t, "positivity", got.FailedCheck)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	_, err := newRepository(t).GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRepository_ListAndCount(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		run := sampleRun(t)
		run.ID = uuid.Nil
		run.CreatedAt = base.Add(time.Duration(i) * time.Second)
		run.Source = ""
		_, err := repo.Create(ctx, run)
		require.NoError(t, err)
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.Equal(t, SourceAPI, list[0].Source)
	assert.NotEqual(t, uuid.Nil, list[0].ID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
