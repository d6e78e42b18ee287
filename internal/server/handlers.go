package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.systemHandlers.getSystemStats()

	status := "healthy"
	if s.container.RunsDB != nil {
		if err := s.container.RunsDB.Conn().PingContext(r.Context()); err != nil {
			status = "degraded"
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"version":     "1.0.0",
		"service":     "coherence",
		"cpu_percent": cpuPercent,
		"mem_percent": memPercent,
	})
}

// handleEngineConfig returns the active engine configuration
func (s *Server) handleEngineConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.container.Engine.Config()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"integrator": map[string]interface{}{
			"base_time_step": cfg.Integrator.BaseTimeStep,
			"max_steps":      cfg.Integrator.MaxSteps,
		},
		"tolerances": map[string]interface{}{
			"trace":       cfg.Tolerances.Trace,
			"hermiticity": cfg.Tolerances.Hermiticity,
			"positivity":  cfg.Tolerances.Positivity,
		},
		"hamiltonian": map[string]interface{}{
			"reference_frequency":    cfg.Hamiltonian.ReferenceFrequency,
			"coupling_frequency":     cfg.Hamiltonian.CouplingFrequency,
			"long_range_probability": cfg.Hamiltonian.LongRangeProbability,
			"long_range_scale":       cfg.Hamiltonian.LongRangeScale,
			"seed":                   cfg.Hamiltonian.Seed,
		},
		"lindblad": map[string]interface{}{
			"temperature":            cfg.Lindblad.Temperature,
			"amplitude_damping_rate": cfg.Lindblad.AmplitudeDampingRate,
			"dephasing_rate":         cfg.Lindblad.DephasingRate,
			"noise_rate":             cfg.Lindblad.NoiseRate,
			"noise_operators":        cfg.Lindblad.NoiseOperators,
			"noise_density":          cfg.Lindblad.NoiseDensity,
			"seed":                   cfg.Lindblad.Seed,
		},
		"channel_dissipators": cfg.ChannelDissipators,
		"channel_rate":        cfg.ChannelRate,
	})
}

// handleCalibrate runs the calibration job immediately
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	job := s.container.CalibrationJob
	if job == nil {
		http.Error(w, "Calibration is not configured", http.StatusServiceUnavailable)
		return
	}
	var err error
	if sched := s.container.Scheduler; sched != nil {
		err = sched.RunNow(r.Context(), job)
	} else {
		err = job.Run(r.Context())
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Manual calibration failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "completed",
		"job":    job.Name(),
		"runs":   job.LastRuns(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
