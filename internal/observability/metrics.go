// Package observability exports Prometheus metrics for evolution runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aristath/coherence/internal/modules/evolution"
)

var (
	// evolutionsTotal counts finished runs by substrate and outcome (VALID or ABORTED)
	evolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coherence_evolutions_total",
			Help: "Total number of evolution runs",
		},
		[]string{"substrate", "outcome"},
	)

	// evolutionAborts counts aborted runs by the check that failed
	evolutionAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coherence_evolution_aborts_total",
			Help: "Total number of aborted evolution runs by failed check",
		},
		[]string{"check"},
	)

	// stepsExecuted tracks accepted RK4 steps per run
	stepsExecuted = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coherence_evolution_steps",
			Help:    "Accepted integration steps per evolution run",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		},
		[]string{"substrate"},
	)

	// evolutionDuration tracks wall time per run in seconds
	evolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coherence_evolution_duration_seconds",
			Help:    "Evolution wall time in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"substrate"},
	)

	// fidelityClamps counts eigenvalues clamped to zero during fidelity computation
	fidelityClamps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coherence_fidelity_clamped_eigenvalues_total",
			Help: "Negative eigenvalues clamped to zero while computing fidelity",
		},
	)

	// truncatedRuns counts runs cut short by the step limit
	truncatedRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coherence_evolution_truncated_total",
			Help: "Evolution runs truncated by the maximum step count",
		},
	)
)

// Recorder records engine outcomes into the process-wide Prometheus registry
type Recorder struct{}

// NewRecorder creates a Prometheus-backed recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordEvolution records a finished run
func (r *Recorder) RecordEvolution(substrate string, diag evolution.Diagnostics) {
	evolutionsTotal.WithLabelValues(substrate, string(diag.Outcome())).Inc()
	stepsExecuted.WithLabelValues(substrate).Observe(float64(diag.StepsExecuted))
	evolutionDuration.WithLabelValues(substrate).Observe(diag.Elapsed.Seconds())

	if diag.Aborted {
		evolutionAborts.WithLabelValues(string(diag.FailedCheck)).Inc()
	}
	if diag.Truncated {
		truncatedRuns.Inc()
	}
}

// RecordFidelityClamp records clamped eigenvalues from a fidelity computation
func (r *Recorder) RecordFidelityClamp(clamped int) {
	fidelityClamps.Add(float64(clamped))
}
