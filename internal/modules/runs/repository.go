// Package runs persists finished evolution runs.
package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/modules/evolution"
)

// ErrNotFound is returned when no run has the requested ID
var ErrNotFound = errors.New("run not found")

const (
	SourceAPI         = "api"
	SourceCalibration = "calibration"
	SourceBatch       = "batch"
)

// Run is a stored evolution result
type Run struct {
	ID             uuid.UUID
	Substrate      string
	Dimension      int
	Duration       float64
	RequestedSteps int
	StepsExecuted  int
	Aborted        bool
	FailedCheck    string
	Classification string
	// CoherenceTime is +Inf when the run had no dissipators; stored as NULL.
	CoherenceTime   float64
	Entropy         float64
	DecoherenceRate float64
	Purity          float64
	Fidelity        float64
	Source          string
	Density         *mat.CDense
	CreatedAt       time.Time
}

// NewRun builds a record from an integrator result
func NewRun(state *evolution.QuantumState, diag evolution.Diagnostics, duration float64, source string) Run {
	return Run{
		ID:              state.ID,
		Substrate:       string(state.Substrate),
		Dimension:       state.Dimension(),
		Duration:        duration,
		RequestedSteps:  diag.RequestedSteps,
		StepsExecuted:   diag.StepsExecuted,
		Aborted:         diag.Aborted,
		FailedCheck:     string(diag.FailedCheck),
		Classification:  string(state.Classification),
		CoherenceTime:   state.CoherenceTime,
		Entropy:         state.EntanglementMeasure,
		DecoherenceRate: state.DecoherenceRate,
		Purity:          state.Report.Purity,
		Fidelity:        state.Fidelity,
		Source:          source,
		Density:         state.DensityMatrix(),
		CreatedAt:       state.Timestamp,
	}
}

// Repository handles evolution_runs storage
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

const selectColumns = `id, substrate, dimension, duration, requested_steps, steps_executed, aborted,
	failed_check, classification, coherence_time, entropy, decoherence_rate, purity, fidelity,
	source, density_matrix, created_at`

// Create stores a run. A zero ID is replaced by a new UUID, which is returned.
func (r *Repository) Create(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Source == "" {
		run.Source = SourceAPI
	}

	blob, err := EncodeDensity(run.Density)
	if err != nil {
		return uuid.Nil, err
	}

	var coherence sql.NullFloat64
	if !math.IsInf(run.CoherenceTime, 0) && !math.IsNaN(run.CoherenceTime) {
		coherence = sql.NullFloat64{Float64: run.CoherenceTime, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO evolution_runs
		(id, substrate, dimension, duration, requested_steps, steps_executed, aborted,
		 failed_check, classification, coherence_time, entropy, decoherence_rate, purity, fidelity,
		 source, density_matrix, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID.String(),
		run.Substrate,
		run.Dimension,
		run.Duration,
		run.RequestedSteps,
		run.StepsExecuted,
		run.Aborted,
		run.FailedCheck,
		run.Classification,
		coherence,
		run.Entropy,
		run.DecoherenceRate,
		run.Purity,
		run.Fidelity,
		run.Source,
		blob,
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().Str("id", run.ID.String()).Str("substrate", run.Substrate).Msg("Stored evolution run")
	return run.ID, nil
}

// GetByID returns one run or ErrNotFound
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM evolution_runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit returns 50.
func (r *Repository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM evolution_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return out, nil
}

// Count returns the number of stored runs
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evolution_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run       Run
		id        string
		coherence sql.NullFloat64
		blob      []byte
		created   int64
	)
	err := s.Scan(
		&id,
		&run.Substrate,
		&run.Dimension,
		&run.Duration,
		&run.RequestedSteps,
		&run.StepsExecuted,
		&run.Aborted,
		&run.FailedCheck,
		&run.Classification,
		&coherence,
		&run.Entropy,
		&run.DecoherenceRate,
		&run.Purity,
		&run.Fidelity,
		&run.Source,
		&blob,
		&created,
	)
	if err != nil {
		return Run{}, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("bad run id %q: %w", id, err)
	}
	run.CoherenceTime = math.Inf(1)
	if coherence.Valid {
		run.CoherenceTime = coherence.Float64
	}
	if run.Density, err = DecodeDensity(blob); err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.Unix(0, created)
	return run, nil
}
