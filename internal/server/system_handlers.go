package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/coherence/internal/database"
)

// runCounter is the part of the run store the status endpoint needs
type runCounter interface {
	Count(ctx context.Context) (int, error)
}

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	runsDB      *database.DB
	runs        runCounter
	workers     int
}

// NewSystemHandlers creates system handlers. runsDB and runs may be nil.
func NewSystemHandlers(log zerolog.Logger, runsDB *database.DB, runs runCounter, workers int) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		runsDB:      runsDB,
		workers:     workers,
	}
	// persistence is reported only when both the database and the repository are wired
	if runsDB != nil && runs != nil {
		h.runs = runs
	}
	return h
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemPercent    float64 `json:"mem_percent"`
	Goroutines    int     `json:"goroutines"`
	Workers       int     `json:"workers"`
	Persistence   bool    `json:"persistence"`
	StoredRuns    int     `json:"stored_runs"`
	DatabaseError string  `json:"database_error,omitempty"`
}

// HandleSystemStatus returns process and host status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemPercent:    memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Workers:       h.workers,
		Persistence:   h.runs != nil,
	}

	if h.runs != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := h.runsDB.HealthCheck(ctx); err != nil {
			response.Status = "degraded"
			response.DatabaseError = err.Error()
		} else if n, err := h.runs.Count(ctx); err != nil {
			response.Status = "degraded"
			response.DatabaseError = err.Error()
		} else {
			response.StoredRuns = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// getSystemStats returns CPU and memory usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps health checks fast
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
