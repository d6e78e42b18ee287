package handlers

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/metrics"
	"github.com/aristath/coherence/internal/modules/runs"
)

// Float encodes NaN and ±Inf as null
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// Matrix is a complex matrix on the wire: rows of [re, im] pairs
type Matrix [][][2]float64

// ToCDense converts a wire matrix to a dense complex matrix
func (m Matrix) ToCDense() (*mat.CDense, error) {
	rows := make([][]complex128, len(m))
	for i, row := range m {
		rows[i] = make([]complex128, len(row))
		for j, v := range row {
			rows[i][j] = complex(v[0], v[1])
		}
	}
	return linalg.FromRows(rows)
}

func matrixFrom(a *mat.CDense) Matrix {
	rows := linalg.Rows(a)
	out := make(Matrix, len(rows))
	for i, row := range rows {
		out[i] = make([][2]float64, len(row))
		for j, v := range row {
			out[i][j] = [2]float64{real(v), imag(v)}
		}
	}
	return out
}

// RunRequest describes one evolution over HTTP
type RunRequest struct {
	Dimension    int                `json:"dimension"`
	Substrate    string             `json:"substrate"`
	Duration     float64            `json:"duration"`
	InitialState engine.InitialKind `json:"initial_state"`
	Persist      bool               `json:"persist"`
}

// BatchRequest runs many evolutions on the worker pool
type BatchRequest struct {
	Runs    []RunRequest `json:"runs"`
	Persist bool         `json:"persist"`
}

// FidelityRequest compares two density matrices
type FidelityRequest struct {
	A Matrix `json:"a"`
	B Matrix `json:"b"`
}

// MetricsRequest computes metrics for a density matrix under a substrate's rates
type MetricsRequest struct {
	DensityMatrix Matrix `json:"density_matrix"`
	Substrate     string `json:"substrate"`
}

// ReportDTO mirrors metrics.Report with null-safe floats
type ReportDTO struct {
	CoherenceTime       Float                      `json:"coherence_time"`
	EntanglementEntropy Float                      `json:"entanglement_entropy"`
	DecoherenceRate     Float                      `json:"decoherence_rate"`
	Purity              Float                      `json:"purity"`
	OffDiagonalNorm     Float                      `json:"off_diagonal_norm"`
	TotalNorm           Float                      `json:"total_norm"`
	Classification      metrics.Classification     `json:"classification"`
	Entanglement        metrics.EntanglementResult `json:"entanglement"`
}

func reportFrom(r metrics.Report) ReportDTO {
	return ReportDTO{
		CoherenceTime:       Float(r.CoherenceTime),
		EntanglementEntropy: Float(r.EntanglementEntropy),
		DecoherenceRate:     Float(r.DecoherenceRate),
		Purity:              Float(r.Purity),
		OffDiagonalNorm:     Float(r.OffDiagonalNorm),
		TotalNorm:           Float(r.TotalNorm),
		Classification:      r.Classification,
		Entanglement:        r.Entanglement,
	}
}

// StateDTO is the wire form of a quantum state
type StateDTO struct {
	ID                    string       `json:"id"`
	Substrate             string       `json:"substrate"`
	Dimension             int          `json:"dimension"`
	Timestamp             string       `json:"timestamp"`
	EnvironmentalCoupling Float        `json:"environmental_coupling"`
	Fidelity              Float        `json:"fidelity"`
	Metrics               ReportDTO    `json:"metrics"`
	DensityMatrix         Matrix       `json:"density_matrix"`
	StateVector           [][2]float64 `json:"state_vector,omitempty"`
}

func stateFrom(s *evolution.QuantumState) StateDTO {
	dto := StateDTO{
		ID:                    s.ID.String(),
		Substrate:             string(s.Substrate),
		Dimension:             s.Dimension(),
		Timestamp:             s.Timestamp.Format(time.RFC3339Nano),
		EnvironmentalCoupling: Float(s.EnvironmentalCoupling),
		Fidelity:              Float(s.Fidelity),
		Metrics:               reportFrom(s.Report),
		DensityMatrix:         matrixFrom(s.DensityMatrix()),
	}
	for _, v := range s.StateVector {
		dto.StateVector = append(dto.StateVector, [2]float64{real(v), imag(v)})
	}
	return dto
}

// DiagnosticsDTO is the wire form of integration diagnostics
type DiagnosticsDTO struct {
	Outcome        evolution.Phase   `json:"outcome"`
	RequestedSteps int               `json:"requested_steps"`
	StepsExecuted  int               `json:"steps_executed"`
	TimeStep       Float             `json:"time_step"`
	SimulatedTime  Float             `json:"simulated_time"`
	Aborted        bool              `json:"aborted"`
	FailedCheck    evolution.Check   `json:"failed_check,omitempty"`
	FailedValue    Float             `json:"failed_value,omitempty"`
	AbortStep      int               `json:"abort_step,omitempty"`
	Truncated      bool              `json:"truncated"`
	Phases         []evolution.Phase `json:"phases"`
	ElapsedMillis  float64           `json:"elapsed_ms"`
}

func diagnosticsFrom(d evolution.Diagnostics) DiagnosticsDTO {
	return DiagnosticsDTO{
		Outcome:        d.Outcome(),
		RequestedSteps: d.RequestedSteps,
		StepsExecuted:  d.StepsExecuted,
		TimeStep:       Float(d.TimeStep),
		SimulatedTime:  Float(d.SimulatedTime),
		Aborted:        d.Aborted,
		FailedCheck:    d.FailedCheck,
		FailedValue:    Float(d.FailedValue),
		AbortStep:      d.AbortStep,
		Truncated:      d.Truncated,
		Phases:         d.Phases,
		ElapsedMillis:  float64(d.Elapsed.Microseconds()) / 1000,
	}
}

// RunResponse is returned for every evolution
type RunResponse struct {
	State       StateDTO       `json:"state"`
	Diagnostics DiagnosticsDTO `json:"diagnostics"`
	Persisted   bool           `json:"persisted"`
	Error       string         `json:"error,omitempty"`
}

// RunRecordDTO is the wire form of a stored run
type RunRecordDTO struct {
	ID              string `json:"id"`
	Substrate       string `json:"substrate"`
	Dimension       int    `json:"dimension"`
	Duration        Float  `json:"duration"`
	RequestedSteps  int    `json:"requested_steps"`
	StepsExecuted   int    `json:"steps_executed"`
	Aborted         bool   `json:"aborted"`
	FailedCheck     string `json:"failed_check,omitempty"`
	Classification  string `json:"classification"`
	CoherenceTime   Float  `json:"coherence_time"`
	Entropy         Float  `json:"entanglement_entropy"`
	DecoherenceRate Float  `json:"decoherence_rate"`
	Purity          Float  `json:"purity"`
	Fidelity        Float  `json:"fidelity"`
	Source          string `json:"source"`
	CreatedAt       string `json:"created_at"`
	DensityMatrix   Matrix `json:"density_matrix,omitempty"`
}

func recordFrom(r runs.Run, withMatrix bool) RunRecordDTO {
	dto := RunRecordDTO{
		ID:              r.ID.String(),
		Substrate:       r.Substrate,
		Dimension:       r.Dimension,
		Duration:        Float(r.Duration),
		RequestedSteps:  r.RequestedSteps,
		StepsExecuted:   r.StepsExecuted,
		Aborted:         r.Aborted,
		FailedCheck:     r.FailedCheck,
		Classification:  r.Classification,
		CoherenceTime:   Float(r.CoherenceTime),
		Entropy:         Float(r.Entropy),
		DecoherenceRate: Float(r.DecoherenceRate),
		Purity:          Float(r.Purity),
		Fidelity:        Float(r.Fidelity),
		Source:          r.Source,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339Nano),
	}
	if withMatrix && r.Density != nil {
		dto.DensityMatrix = matrixFrom(r.Density)
	}
	return dto
}

// ProgressMessage is streamed over the websocket after accepted steps
type ProgressMessage struct {
	Type            string  `json:"type"`
	Step            int     `json:"step"`
	Time            Float   `json:"time"`
	Purity          Float   `json:"purity"`
	OffDiagonalNorm Float   `json:"off_diagonal_norm"`
	Populations     []Float `json:"populations"`
}

// envelope wraps every response the way the rest of the API does
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

var _ json.Marshaler = Float(0)
