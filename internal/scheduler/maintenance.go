package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/database"
)

const maintenanceTimeout = 30 * time.Second

// DatabaseMaintenanceJob checkpoints the WAL and runs an integrity check on the run database
type DatabaseMaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewDatabaseMaintenanceJob creates a maintenance job. db may be nil, which makes Run a no-op.
func NewDatabaseMaintenanceJob(db *database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		db:  db,
		log: log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance
func (j *DatabaseMaintenanceJob) Run(ctx context.Context) error {
	if j.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database maintenance: %w", err)
	}
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("WAL checkpoint failed")
		return nil
	}

	j.log.Debug().Str("database", j.db.Name()).Msg("Database maintenance completed")
	return nil
}
