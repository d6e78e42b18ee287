// Package handlers provides HTTP handlers for evolution runs and state metrics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/batch"
	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/channels"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/runs"
	"github.com/aristath/coherence/internal/modules/substrate"
)

const (
	// MaxDimension bounds the Hilbert space size accepted over HTTP
	MaxDimension = 64
	// MaxBatchSize bounds the number of runs in one batch request
	MaxBatchSize = 64

	defaultChannelDimension = 4
	defaultListLimit        = 50
)

// RunStore persists evolution runs
type RunStore interface {
	Create(ctx context.Context, run runs.Run) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (runs.Run, error)
	List(ctx context.Context, limit int) ([]runs.Run, error)
	Count(ctx context.Context) (int, error)
}

// Handler handles evolution HTTP requests
type Handler struct {
	engine *engine.Engine
	runner *batch.Runner
	store  RunStore
	log    zerolog.Logger
}

// NewHandler creates a new evolution handler. store may be nil, which disables persistence.
func NewHandler(
	e *engine.Engine,
	runner *batch.Runner,
	store RunStore,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		engine: e,
		runner: runner,
		store:  store,
		log:    log.With().Str("handler", "evolution").Logger(),
	}
}

func (req RunRequest) validate() error {
	if req.Dimension < 2 || req.Dimension > MaxDimension {
		return domain.NewConfigurationError("dimension", req.Dimension, "must be within [2, "+strconv.Itoa(MaxDimension)+"]")
	}
	return nil
}

// HandleRun handles POST /api/evolution/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, err)
		return
	}

	space, err := h.engine.ConfigureHilbertSpace(req.Dimension)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ops, err := h.engine.BuildOperators(space, req.Substrate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	initial, err := h.engine.InitialState(space, ops, req.InitialState)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.Evolve(r.Context(), space, ops, initial, req.Duration)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := RunResponse{State: stateFrom(result.State), Diagnostics: diagnosticsFrom(result.Diagnostics)}
	if req.Persist {
		resp.Persisted = h.persist(r.Context(), result, req.Duration, runs.SourceAPI)
	}

	h.writeJSON(w, http.StatusOK, envelope(resp))
}

// HandleBatch handles POST /api/evolution/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Runs) == 0 || len(req.Runs) > MaxBatchSize {
		http.Error(w, "Batch must contain between 1 and "+strconv.Itoa(MaxBatchSize)+" runs", http.StatusBadRequest)
		return
	}

	jobs := make([]batch.Job, len(req.Runs))
	for i, run := range req.Runs {
		if err := run.validate(); err != nil {
			h.writeError(w, err)
			return
		}
		jobs[i] = batch.Job{Dimension: run.Dimension, Substrate: run.Substrate, Initial: run.InitialState, Duration: run.Duration}
	}

	outcomes := h.runner.Run(r.Context(), jobs)

	results := make([]RunResponse, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			results[i] = RunResponse{Error: o.Err.Error()}
			continue
		}
		results[i] = RunResponse{State: stateFrom(o.Result.State), Diagnostics: diagnosticsFrom(o.Result.Diagnostics)}
		if req.Persist || req.Runs[i].Persist {
			results[i].Persisted = h.persist(r.Context(), o.Result, o.Job.Duration, runs.SourceBatch)
		}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"results": results,
		"count":   len(results),
		"workers": h.runner.Workers(),
	}))
}

// HandleFidelity handles POST /api/evolution/fidelity
func (h *Handler) HandleFidelity(w http.ResponseWriter, r *http.Request) {
	var req FidelityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	a, err := h.wireState(req.A)
	if err != nil {
		h.writeError(w, err)
		return
	}
	b, err := h.wireState(req.B)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.Fidelity(a, b)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"fidelity":            Float(result.Value),
		"clamped_eigenvalues": result.ClampedEigenvalues,
	}))
}

// HandleMetrics handles POST /api/evolution/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, err := h.wireState(req.DensityMatrix)
	if err != nil {
		h.writeError(w, err)
		return
	}
	space, err := h.engine.ConfigureHilbertSpace(state.Dimension())
	if err != nil {
		h.writeError(w, err)
		return
	}
	ops, err := h.engine.BuildOperators(space, req.Substrate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	report, err := h.engine.ComputeMetrics(state, ops)
	if err != nil {
		h.writeError(w, err)
		return
	}

	validation := h.engine.Validator().Validate(state.DensityMatrix())
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"substrate": ops.Substrate,
		"metrics":   reportFrom(report),
		"validation": map[string]interface{}{
			"valid":        validation.Valid,
			"failed_check": validation.Failed,
			"value":        Float(validation.Value),
		},
	}))
}

// HandleGetSubstrate handles GET /api/evolution/substrates/{type}
func (h *Handler) HandleGetSubstrate(w http.ResponseWriter, r *http.Request) {
	st, err := substrate.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	model, err := substrate.NewModel(st)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dimension := defaultChannelDimension
	if v := r.URL.Query().Get("dimension"); v != "" {
		dimension, err = strconv.Atoi(v)
		if err != nil || dimension < 1 || dimension > MaxDimension {
			http.Error(w, "Invalid dimension", http.StatusBadRequest)
			return
		}
	}

	channel, err := channels.NewGenerator(h.log).Generate(st, dimension)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"summary": model.Summary(),
		"channel": map[string]interface{}{
			"pattern":   channel.Pattern,
			"dimension": channel.Dimension(),
			"matrix":    matrixFrom(channel.Matrix()),
		},
	}))
}

// HandleListSubstrates handles GET /api/evolution/substrates
func (h *Handler) HandleListSubstrates(w http.ResponseWriter, r *http.Request) {
	summaries := make([]substrate.Summary, 0, len(substrate.Types()))
	for _, t := range substrate.Types() {
		model, err := substrate.NewModel(t)
		if err != nil {
			h.writeError(w, err)
			return
		}
		summaries = append(summaries, model.Summary())
	}
	h.writeJSON(w, http.StatusOK, envelope(summaries))
}

// HandleListRuns handles GET /api/evolution/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Run persistence is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	records := make([]RunRecordDTO, len(list))
	for i, run := range list {
		records[i] = recordFrom(run, false)
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  records,
		"count": len(records),
		"total": total,
	}))
}

// HandleGetRun handles GET /api/evolution/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Run persistence is disabled", http.StatusServiceUnavailable)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(recordFrom(run, true)))
}

func (h *Handler) wireState(m Matrix) (*evolution.QuantumState, error) {
	rho, err := m.ToCDense()
	if err != nil {
		return nil, err
	}
	if n, _ := rho.Dims(); n > MaxDimension {
		return nil, domain.NewConfigurationError("dimension", n, "too large")
	}
	return evolution.NewState(rho, substrate.Default, 0)
}

func (h *Handler) persist(ctx context.Context, result engine.Result, duration float64, source string) bool {
	if h.store == nil {
		return false
	}
	if _, err := h.store.Create(ctx, runs.NewRun(result.State, result.Diagnostics, duration, source)); err != nil {
		h.log.Error().Err(err).Msg("Failed to persist run")
		return false
	}
	return true
}

// writeError maps domain errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrDimensionMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, runs.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
