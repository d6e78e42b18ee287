package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/config"
	"github.com/aristath/coherence/internal/scheduler"
)

// maintenanceSchedule checkpoints the runs database every 15 minutes
const maintenanceSchedule = "0 */15 * * * *"

// RegisterJobs creates the scheduler and registers the background jobs.
// Calibration is registered only when a schedule is configured; the job still
// exists for manual runs through the API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	sched := scheduler.New(log)

	container.MaintenanceJob = scheduler.NewDatabaseMaintenanceJob(container.RunsDB, log)
	if err := sched.AddJob(maintenanceSchedule, container.MaintenanceJob); err != nil {
		return fmt.Errorf("failed to register %s: %w", container.MaintenanceJob.Name(), err)
	}

	container.CalibrationJob = scheduler.NewCalibrationJob(
		container.Engine,
		container.RunRepo,
		scheduler.DefaultCalibrationSettings(),
		log,
	)
	if cfg.CalibrationSchedule != "" {
		if err := sched.AddJob(cfg.CalibrationSchedule, container.CalibrationJob); err != nil {
			return fmt.Errorf("failed to register %s: %w", container.CalibrationJob.Name(), err)
		}
	}

	container.Scheduler = sched
	return nil
}
