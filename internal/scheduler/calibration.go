package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/runs"
	"github.com/aristath/coherence/internal/modules/substrate"
)

// runWriter stores calibration results
type runWriter interface {
	Create(ctx context.Context, run runs.Run) (uuid.UUID, error)
}

// CalibrationSettings is the reference configuration evolved for every substrate
type CalibrationSettings struct {
	Dimension int
	Duration  float64
	Initial   engine.InitialKind
	Timeout   time.Duration
}

// DefaultCalibrationSettings returns a short superposition run on a 4-level space
func DefaultCalibrationSettings() CalibrationSettings {
	return CalibrationSettings{
		Dimension: 4,
		Duration:  1e-8,
		Initial:   engine.InitialSuperposition,
		Timeout:   2 * time.Minute,
	}
}

// CalibrationResult summarises one substrate's reference run
type CalibrationResult struct {
	Substrate      string  `json:"substrate"`
	RunID          string  `json:"run_id"`
	Classification string  `json:"classification"`
	StepsExecuted  int     `json:"steps_executed"`
	Aborted        bool    `json:"aborted"`
	FailedCheck    string  `json:"failed_check,omitempty"`
	Purity         float64 `json:"purity"`
	Fidelity       float64 `json:"fidelity"`
}

// CalibrationJob evolves the reference configuration for each substrate and stores the results
type CalibrationJob struct {
	engine   *engine.Engine
	store    runWriter
	settings CalibrationSettings
	log      zerolog.Logger

	mu   sync.Mutex
	last []CalibrationResult
}

// NewCalibrationJob creates a calibration job. store may be nil, which skips persistence.
func NewCalibrationJob(e *engine.Engine, store runWriter, settings CalibrationSettings, log zerolog.Logger) *CalibrationJob {
	return &CalibrationJob{
		engine:   e,
		store:    store,
		settings: settings,
		log:      log.With().Str("job", "calibration").Logger(),
	}
}

// Name returns the job name
func (j *CalibrationJob) Name() string {
	return "calibration"
}

// Run executes the calibration for every substrate. A cancelled or expired ctx
// stops it at the next integration step and nothing from that pass is stored.
func (j *CalibrationJob) Run(ctx context.Context) error {
	if j.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.settings.Timeout)
		defer cancel()
	}

	space, err := j.engine.ConfigureHilbertSpace(j.settings.Dimension)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	results := make([]CalibrationResult, 0, len(substrate.Types()))
	for _, t := range substrate.Types() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("calibration %s: %w", t, err)
		}
		ops, err := j.engine.BuildOperators(space, string(t))
		if err != nil {
			return fmt.Errorf("calibration %s: %w", t, err)
		}
		initial, err := j.engine.InitialState(space, ops, j.settings.Initial)
		if err != nil {
			return fmt.Errorf("calibration %s: %w", t, err)
		}

		res, err := j.engine.Evolve(ctx, space, ops, initial, j.settings.Duration)
		if err != nil {
			return fmt.Errorf("calibration %s: %w", t, err)
		}
		if err := ctx.Err(); err != nil {
			// the run aborted on the cancelled check and is not a reference result
			return fmt.Errorf("calibration %s: %w", t, err)
		}

		result := CalibrationResult{
			Substrate:      string(t),
			RunID:          res.State.ID.String(),
			Classification: string(res.State.Classification),
			StepsExecuted:  res.Diagnostics.StepsExecuted,
			Aborted:        res.Diagnostics.Aborted,
			FailedCheck:    string(res.Diagnostics.FailedCheck),
			Purity:         res.State.Report.Purity,
			Fidelity:       res.State.Fidelity,
		}

		if j.store != nil {
			run := runs.NewRun(res.State, res.Diagnostics, j.settings.Duration, runs.SourceCalibration)
			if _, err := j.store.Create(ctx, run); err != nil {
				return fmt.Errorf("calibration %s: store run: %w", t, err)
			}
		}

		j.log.Info().
			Str("substrate", result.Substrate).
			Str("classification", result.Classification).
			Bool("aborted", result.Aborted).
			Float64("fidelity", result.Fidelity).
			Msg("Calibration run finished")

		results = append(results, result)
	}

	j.mu.Lock()
	j.last = results
	j.mu.Unlock()

	return nil
}

// LastRuns returns the results of the most recent successful calibration
func (j *CalibrationJob) LastRuns() []CalibrationResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]CalibrationResult, len(j.last))
	copy(out, j.last)
	return out
}
