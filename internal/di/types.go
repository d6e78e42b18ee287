/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to services.
 */
package di

import (
	"github.com/aristath/coherence/internal/batch"
	"github.com/aristath/coherence/internal/database"
	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/runs"
	"github.com/aristath/coherence/internal/observability"
	"github.com/aristath/coherence/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: runs.db holds persisted evolution runs (WAL mode, standard profile)
 * - Repositories: run store over runs.db
 * - Services: the evolution engine and the batch runner on its worker pool
 * - Jobs: cron scheduler with calibration and database maintenance
 */
type Container struct {
	// Databases
	RunsDB *database.DB // Persisted evolution runs

	// Repositories
	RunRepo *runs.Repository

	// Services
	Recorder    *observability.Recorder // Prometheus recorder fed by the engine
	Engine      *engine.Engine
	BatchRunner *batch.Runner

	// Jobs
	Scheduler      *scheduler.Scheduler
	CalibrationJob *scheduler.CalibrationJob // scheduled only when COHERENCE_CALIBRATION_SCHEDULE is set
	MaintenanceJob *scheduler.DatabaseMaintenanceJob
}

// Close releases the container's databases
func (c *Container) Close() error {
	if c.RunsDB == nil {
		return nil
	}
	return c.RunsDB.Close()
}
