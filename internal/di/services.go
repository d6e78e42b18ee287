package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/coherence/internal/batch"
	"github.com/aristath/coherence/internal/config"
	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/runs"
	"github.com/aristath/coherence/internal/observability"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)
}

// InitializeServices creates the engine and the batch runner
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.Recorder = observability.NewRecorder()
	container.Engine = engine.New(cfg.Physics.ToEngineConfig(), log, container.Recorder)
	container.BatchRunner = batch.NewRunner(container.Engine, cfg.Workers, log)
}
